package poller

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/netpulse/netpulse/internal/database"
)

// snmpCheck is one threshold check against an OID. Checks arrive in the
// target config under "snmp_checks", written there by addon discovery.
type snmpCheck struct {
	OID       string
	AlertType string
	Operator  string // gt, ge, lt, le, eq, ne
	Threshold float64
	Severity  string
	Message   string
}

// SNMPPoller polls targets over SNMP GET and evaluates threshold checks
// against the returned values.
type SNMPPoller struct{}

// NewSNMPPoller creates an SNMP poller
func NewSNMPPoller() *SNMPPoller {
	return &SNMPPoller{}
}

// Method returns the addon method this poller serves
func (p *SNMPPoller) Method() database.AddonMethod {
	return database.MethodSNMPPoll
}

// Poll connects to the target, fetches every check's OID in one GET, and
// reports each check as either an alert-shaped entry (threshold breached)
// or a clear type (value observed healthy). Connection or protocol
// failures report nothing absent.
func (p *SNMPPoller) Poll(ctx context.Context, target *database.Target) PollResult {
	checks := parseSNMPChecks(target.Config)
	if len(checks) == 0 {
		return PollResult{
			Success: false,
			Err:     &ConfigurationError{TargetUUID: target.UUID, Reason: "no snmp_checks in target config"},
		}
	}

	community := configString(target.Config, "community")
	if community == "" {
		community = "public"
	}

	client := &gosnmp.GoSNMP{
		Context:   ctx,
		Target:    target.IPAddress,
		Port:      uint16(configInt(target.Config, "snmp_port", 161)),
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   5 * time.Second,
		Retries:   1,
	}

	if err := client.Connect(); err != nil {
		return PollResult{
			Success:   false,
			Reachable: false,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: err},
		}
	}
	defer client.Conn.Close()

	oids := make([]string, 0, len(checks))
	for _, c := range checks {
		oids = append(oids, c.OID)
	}

	packet, err := client.Get(oids)
	if err != nil {
		return PollResult{
			Success:   false,
			Reachable: false,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: err},
		}
	}

	values := make(map[string]float64, len(packet.Variables))
	for _, v := range packet.Variables {
		if f, ok := snmpNumericValue(v); ok {
			values[v.Name] = f
		}
	}

	result := PollResult{Success: true, Reachable: true}
	for _, check := range checks {
		value, ok := lookupOID(values, check.OID)
		if !ok {
			// OID missing from the response: not evidence either way.
			continue
		}
		if compareThreshold(value, check.Operator, check.Threshold) {
			message := check.Message
			if message == "" {
				message = fmt.Sprintf("%s: value %.2f %s threshold %.2f", check.AlertType, value, check.Operator, check.Threshold)
			}
			result.Alerts = append(result.Alerts, ReportedAlert{
				AlertType: check.AlertType,
				Severity:  check.Severity,
				Category:  "snmp",
				Message:   message,
				RawData: map[string]interface{}{
					"oid":       check.OID,
					"value":     value,
					"threshold": check.Threshold,
					"operator":  check.Operator,
				},
			})
		} else {
			result.ClearTypes = append(result.ClearTypes, check.AlertType)
		}
	}
	return result
}

// lookupOID tolerates a leading dot mismatch between configured and
// returned OIDs.
func lookupOID(values map[string]float64, oid string) (float64, bool) {
	if v, ok := values[oid]; ok {
		return v, true
	}
	if v, ok := values["."+oid]; ok {
		return v, true
	}
	return 0, false
}

func snmpNumericValue(v gosnmp.SnmpPDU) (float64, bool) {
	switch v.Type {
	case gosnmp.Integer, gosnmp.Counter32, gosnmp.Counter64, gosnmp.Gauge32, gosnmp.TimeTicks, gosnmp.Uinteger32:
		bi := gosnmp.ToBigInt(v.Value)
		f, _ := new(big.Float).SetInt(bi).Float64()
		return f, true
	case gosnmp.OpaqueFloat:
		if f, ok := v.Value.(float32); ok {
			return float64(f), true
		}
	case gosnmp.OpaqueDouble:
		if f, ok := v.Value.(float64); ok {
			return f, true
		}
	}
	return 0, false
}

func compareThreshold(value float64, operator string, threshold float64) bool {
	switch operator {
	case "gt":
		return value > threshold
	case "ge":
		return value >= threshold
	case "lt":
		return value < threshold
	case "le":
		return value <= threshold
	case "eq":
		return value == threshold
	case "ne":
		return value != threshold
	}
	return false
}

// parseSNMPChecks decodes the snmp_checks list from the target config
func parseSNMPChecks(cfg database.JSONB) []snmpCheck {
	raw, ok := cfg["snmp_checks"].([]interface{})
	if !ok {
		return nil
	}

	var checks []snmpCheck
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			continue
		}
		check := snmpCheck{
			OID:       stringField(m, "oid"),
			AlertType: stringField(m, "alert_type"),
			Operator:  stringField(m, "operator"),
			Severity:  stringField(m, "severity"),
			Message:   stringField(m, "message"),
		}
		if t, ok := m["threshold"].(float64); ok {
			check.Threshold = t
		}
		if check.OID == "" || check.AlertType == "" || check.Operator == "" {
			continue
		}
		checks = append(checks, check)
	}
	return checks
}

func stringField(m map[string]interface{}, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
