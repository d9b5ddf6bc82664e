package alerts

import (
	"testing"
)

func strptr(s string) *string { return &s }

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("cisco-switch", "10.0.0.1", "port_down", strptr("Gi0/1"))
	b := Fingerprint("cisco-switch", "10.0.0.1", "port_down", strptr("Gi0/1"))
	if a != b {
		t.Errorf("same inputs produced different fingerprints: %s vs %s", a, b)
	}
}

func TestFingerprint_Length(t *testing.T) {
	fp := Fingerprint("addon", "10.0.0.1", "cpu_high", nil)
	if len(fp) != 32 {
		t.Errorf("expected 32 hex chars, got %d (%s)", len(fp), fp)
	}
}

func TestFingerprint_DistinctInputs(t *testing.T) {
	base := Fingerprint("addon", "10.0.0.1", "cpu_high", nil)

	variants := map[string]string{
		"different addon":  Fingerprint("other", "10.0.0.1", "cpu_high", nil),
		"different device": Fingerprint("addon", "10.0.0.2", "cpu_high", nil),
		"different type":   Fingerprint("addon", "10.0.0.1", "mem_high", nil),
		"with discriminator": Fingerprint("addon", "10.0.0.1", "cpu_high",
			strptr("core0")),
	}

	for name, fp := range variants {
		if fp == base {
			t.Errorf("%s collided with base fingerprint", name)
		}
	}
}

func TestFingerprint_NilVsEmptyDiscriminator(t *testing.T) {
	withNil := Fingerprint("addon", "10.0.0.1", "port_down", nil)
	withEmpty := Fingerprint("addon", "10.0.0.1", "port_down", strptr(""))
	if withNil == withEmpty {
		t.Error("nil and empty discriminator must produce different fingerprints")
	}
}

func TestFingerprint_NoFieldBoundaryCollision(t *testing.T) {
	// "ab" + "c" must not hash the same as "a" + "bc"
	a := Fingerprint("ab", "c", "x", nil)
	b := Fingerprint("a", "bc", "x", nil)
	if a == b {
		t.Error("field concatenation collision across addon/device boundary")
	}
}

func TestFingerprintFor_UsesDiscriminator(t *testing.T) {
	p := ParsedAlert{AlertType: "port_down", DeviceIP: "10.0.0.1", Discriminator: strptr("Gi0/2")}
	got := FingerprintFor(p, "cisco-switch")
	want := Fingerprint("cisco-switch", "10.0.0.1", "port_down", strptr("Gi0/2"))
	if got != want {
		t.Errorf("FingerprintFor mismatch: %s vs %s", got, want)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in   string
		want Severity
	}{
		{"critical", "critical"},
		{"DISASTER", "critical"},
		{"high", "major"},
		{"error", "major"},
		{"average", "minor"},
		{"warning", "warning"},
		{"  Warn  ", "warning"},
		{"info", "info"},
		{"notice", "info"},
		{"unknown-level", "warning"},
		{"", "warning"},
	}
	for _, c := range cases {
		if got := NormalizeSeverity(c.in); got != c.want {
			t.Errorf("NormalizeSeverity(%q) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestIsClearStatus(t *testing.T) {
	for _, s := range []string{"resolved", "OK", "recovery", "cleared", "up"} {
		if !IsClearStatus(s) {
			t.Errorf("expected %q to be a clear status", s)
		}
	}
	for _, s := range []string{"firing", "active", "problem", ""} {
		if IsClearStatus(s) {
			t.Errorf("expected %q not to be a clear status", s)
		}
	}
}
