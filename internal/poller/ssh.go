package poller

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/netpulse/netpulse/internal/database"
)

// SSHPoller polls targets by running a configured command over SSH and
// decoding its JSON output into the poll result shape (same contract as the
// API poller). Credentials come from the target config: "username" plus
// either "private_key" (optionally "base64:"-prefixed) or "password".
type SSHPoller struct{}

// NewSSHPoller creates an SSH poller
func NewSSHPoller() *SSHPoller {
	return &SSHPoller{}
}

// Method returns the addon method this poller serves
func (p *SSHPoller) Method() database.AddonMethod {
	return database.MethodSSH
}

// Poll dials the target, runs the check command, and parses its output.
// Dial, auth, and command failures are transient.
func (p *SSHPoller) Poll(ctx context.Context, target *database.Target) PollResult {
	username := configString(target.Config, "username")
	command := configString(target.Config, "command")
	if username == "" || command == "" {
		return PollResult{
			Success: false,
			Err:     &ConfigurationError{TargetUUID: target.UUID, Reason: "ssh poll requires username and command in target config"},
		}
	}

	auth, err := sshAuthMethods(target.Config)
	if err != nil {
		return PollResult{
			Success: false,
			Err:     &ConfigurationError{TargetUUID: target.UUID, Reason: err.Error()},
		}
	}

	clientConfig := &ssh.ClientConfig{
		User: username,
		Auth: auth,
		// Targets are provisioned devices on a monitored network; host keys
		// are not tracked per device.
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	addr := net.JoinHostPort(target.IPAddress, fmt.Sprintf("%d", configInt(target.Config, "ssh_port", 22)))

	dialer := &net.Dialer{Timeout: clientConfig.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return PollResult{
			Success:   false,
			Reachable: false,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: err},
		}
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, clientConfig)
	if err != nil {
		conn.Close()
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: err},
		}
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: err},
		}
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	// Abandon the session if the task deadline fires mid-command.
	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()
	select {
	case err = <-done:
	case <-ctx.Done():
		session.Close()
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: ctx.Err()},
		}
	}
	if err != nil {
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: fmt.Errorf("command failed: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))},
		}
	}

	var decoded apiPollResponse
	if err := json.Unmarshal(stdout.Bytes(), &decoded); err != nil {
		return PollResult{
			Success:   false,
			Reachable: true,
			Err:       &TransientPollError{TargetUUID: target.UUID, Err: fmt.Errorf("decoding command output: %w", err)},
		}
	}

	return PollResult{
		Success:    true,
		Reachable:  true,
		Alerts:     decoded.Alerts,
		ClearTypes: decoded.ClearTypes,
	}
}

// sshAuthMethods builds the auth chain from the target config. Private
// keys may be stored base64-encoded with a "base64:" prefix.
func sshAuthMethods(cfg database.JSONB) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod

	if key := configString(cfg, "private_key"); key != "" {
		if strings.HasPrefix(key, "base64:") {
			decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(key, "base64:"))
			if err != nil {
				return nil, fmt.Errorf("invalid base64 private key: %w", err)
			}
			key = string(decoded)
		}
		signer, err := ssh.ParsePrivateKey([]byte(key))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if password := configString(cfg, "password"); password != "" {
		methods = append(methods, ssh.Password(password))
	}

	if len(methods) == 0 {
		return nil, fmt.Errorf("ssh poll requires private_key or password in target config")
	}
	return methods, nil
}
