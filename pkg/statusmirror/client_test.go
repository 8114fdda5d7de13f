package statusmirror

import (
	"context"
	"testing"
	"time"
)

func TestNewClient_DisabledIsNoOp(t *testing.T) {
	client, err := NewClient(context.Background(), &ClientConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.IsEnabled() {
		t.Fatal("expected disabled client")
	}

	err = client.Push(context.Background(), "validator-1", Status{
		Epoch:     1,
		Block:     100,
		Role:      "cosigner",
		Address:   "abc",
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Push on disabled client should be a no-op, got: %v", err)
	}
}

func TestNewClient_EnabledRequiresProjectID(t *testing.T) {
	_, err := NewClient(context.Background(), &ClientConfig{Enabled: true})
	if err == nil {
		t.Fatal("expected error when enabled without a project id")
	}
}
