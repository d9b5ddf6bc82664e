package poller

import (
	"context"
	"errors"
	"testing"

	"github.com/netpulse/netpulse/internal/database"
)

func TestSSHAuthMethods_PasswordOnly(t *testing.T) {
	methods, err := sshAuthMethods(database.JSONB{"password": "hunter2"})
	if err != nil {
		t.Fatalf("sshAuthMethods failed: %v", err)
	}
	if len(methods) != 1 {
		t.Errorf("expected 1 auth method, got %d", len(methods))
	}
}

func TestSSHAuthMethods_NoCredentials(t *testing.T) {
	if _, err := sshAuthMethods(database.JSONB{}); err == nil {
		t.Error("expected error without credentials")
	}
}

func TestSSHAuthMethods_InvalidBase64Key(t *testing.T) {
	if _, err := sshAuthMethods(database.JSONB{"private_key": "base64:%%%not-base64%%%"}); err == nil {
		t.Error("expected error for invalid base64 key")
	}
}

func TestSSHAuthMethods_GarbageKey(t *testing.T) {
	if _, err := sshAuthMethods(database.JSONB{"private_key": "not a pem key"}); err == nil {
		t.Error("expected error for unparseable key")
	}
}

func TestSSHPoll_MissingConfig(t *testing.T) {
	p := NewSSHPoller()

	target := &database.Target{UUID: "t1", IPAddress: "192.0.2.1", Config: database.JSONB{"username": "admin"}}
	result := p.Poll(context.Background(), target)
	var confErr *ConfigurationError
	if result.Success || !errors.As(result.Err, &confErr) {
		t.Errorf("expected configuration error without command, got %+v", result)
	}

	target = &database.Target{UUID: "t1", IPAddress: "192.0.2.1", Config: database.JSONB{"command": "check"}}
	result = p.Poll(context.Background(), target)
	if result.Success || !errors.As(result.Err, &confErr) {
		t.Errorf("expected configuration error without username, got %+v", result)
	}
}
