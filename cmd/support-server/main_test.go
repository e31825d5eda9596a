package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-chat-backend/internal/config"
)

func testConfig(t *testing.T, port string) config.Config {
	t.Helper()
	return config.Config{
		Port:             port,
		AllowedOrigin:    "*",
		InferenceBackend: config.BackendRemote,
		InferenceURL:     "http://127.0.0.1:1/chat-inference",
		InferenceTimeout: time.Second,
		HistoryLimit:     10,
		SessionFile:      filepath.Join(t.TempDir(), "session.json"),
		SessionTTL:       time.Hour,
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, testConfig(t, "0"), zerolog.Nop()) }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRunReturnsListenError(t *testing.T) {
	err := run(context.Background(), testConfig(t, "-1"), zerolog.Nop())
	require.Error(t, err)
}

func TestRunReturnsSetupError(t *testing.T) {
	cfg := testConfig(t, "0")
	cfg.InferenceBackend = config.BackendOpenAI
	cfg.ResponderPromptFile = filepath.Join(t.TempDir(), "missing.yaml")
	err := run(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create server")
}
