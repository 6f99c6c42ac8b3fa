package commands

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/opsmesh/internal/config"
	"github.com/hupe1980/opsmesh/orchestrator"
)

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "opsmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestValidateConfig_OK(t *testing.T) {
	path := writeConfig(t, "model:\n  provider: mock\nclassification:\n  mode: keyword\n")

	out, _, err := run(t, "validate-config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration OK (model=mock, transport=local, classifier=keyword, sessions=memory)")
}

func TestValidateConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "server:\n  rate_limit: -5\n")

	_, _, err := run(t, "validate-config", "--config", path)
	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Problems)
}

func TestValidateConfig_BadLogLevelFlag(t *testing.T) {
	_, _, err := run(t, "validate-config", "--log-level", "chatty")
	assert.Error(t, err)
}

func TestChat(t *testing.T) {
	var got orchestrator.TurnRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orchestrator/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orchestrator.TurnResponse{
			Text:            "[DRAFT EMAIL]\nTo: ops@acme.com",
			SessionID:       "generated-1",
			PendingApproval: true,
		})
	}))
	defer srv.Close()

	out, errOut, err := run(t, "chat", "--server", srv.URL+"/", "email", "ops@acme.com", "the", "stock")
	require.NoError(t, err)

	assert.Equal(t, orchestrator.TurnRequest{Prompt: "email ops@acme.com the stock"}, got)
	assert.Contains(t, out, "[DRAFT EMAIL]")
	assert.Contains(t, out, "opsmesh chat --session generated-1 yes")
	assert.Contains(t, errOut, "session: generated-1")
}

func TestChat_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, _, err := run(t, "chat", "--server", srv.URL, "--session", "s1", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestChat_RequiresPrompt(t *testing.T) {
	_, _, err := run(t, "chat")
	assert.Error(t, err)
}

func TestServe_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "agents:\n  transport: carrier-pigeon\n")

	_, _, err := run(t, "serve", "--config", path)
	var verr *config.ValidationError
	assert.ErrorAs(t, err, &verr)
}
