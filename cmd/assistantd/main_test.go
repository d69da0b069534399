package main

import (
	"context"
	"fmt"
	"testing"

	"modelboot-go/internal/backend"
	"modelboot-go/internal/config"
	"modelboot-go/internal/credential"
	booterrors "modelboot-go/internal/errors"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"transient", fmt.Errorf("%w: timeout", booterrors.ErrAuthTransient), 2},
		{"headless", fmt.Errorf("%w: backend x", booterrors.ErrHeadless), 3},
		{"rejected", fmt.Errorf("%w: 401", booterrors.ErrAuthRejected), 4},
		{"store corrupt", fmt.Errorf("%w: /p.json", booterrors.ErrStoreCorrupt), 5},
		{"cancelled", fmt.Errorf("%w: interrupt", booterrors.ErrLoginCancelled), 130},
		{"other", fmt.Errorf("boom"), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCodeFor(tt.err); got != tt.want {
				t.Errorf("exitCodeFor = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewStoreSelection(t *testing.T) {
	dir := t.TempDir()

	s, err := newStore(context.Background(), &config.Settings{CredentialStore: "file", AuthDir: dir})
	if err != nil {
		t.Fatalf("newStore(file): %v", err)
	}
	if _, ok := s.(*credential.FileStore); !ok {
		t.Errorf("store type = %T, want *credential.FileStore", s)
	}

	if _, err := newStore(context.Background(), &config.Settings{CredentialStore: "vault"}); err == nil {
		t.Error("unknown store accepted")
	}
}

func TestNewChainBuilderSkipsPrimary(t *testing.T) {
	dir := t.TempDir()
	store := credential.NewFileStore(dir)
	cfg := &config.Settings{OpenAIKey: "sk-o", AnthropicKey: "sk-a"}

	b := newChainBuilder(context.Background(), cfg, backend.VendorOpenAI, store)
	if b == nil {
		t.Fatal("nil builder")
	}
}
