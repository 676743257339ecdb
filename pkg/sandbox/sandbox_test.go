package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/uplift/pkg/config"
	apperrors "github.com/odvcencio/uplift/pkg/errors"
	"github.com/odvcencio/uplift/pkg/logging"
)

type fakeProvider struct {
	mu       sync.Mutex
	commands []string
	envVars  map[string]string
	failCmd  string
	server   *httptest.Server
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sandbox", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			EnvVars map[string]string `json:"envVars"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		p.mu.Lock()
		p.envVars = body.EnvVars
		p.mu.Unlock()
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-123", State: "started"})
	})
	mux.HandleFunc("GET /sandbox/sb-123", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-123", State: "started"})
	})
	mux.HandleFunc("POST /toolbox/sb-123/process/execute", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Command string `json:"command"`
			Cwd     string `json:"cwd"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		p.mu.Lock()
		p.commands = append(p.commands, body.Command)
		fail := p.failCmd != "" && body.Command == p.failCmd
		p.mu.Unlock()
		if fail {
			json.NewEncoder(w).Encode(ExecResult{ExitCode: 1, Output: "npm ERR! missing script"})
			return
		}
		json.NewEncoder(w).Encode(ExecResult{ExitCode: 0, Output: "ok"})
	})
	mux.HandleFunc("GET /sandbox/sb-123/ports/3000/preview-url", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(PreviewLink{URL: "https://3000-sb-123.proxy.test"})
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func newTestProvisioner(p *fakeProvider) *Provisioner {
	cfg := config.SandboxConfig{
		APIKey:  "test-key",
		BaseURL: p.server.URL,
		WorkDir: "workspace/app",
		AppPort: 3000,
	}
	prov := NewProvisioner(NewClient(cfg.APIKey, cfg.BaseURL), cfg, logging.NewNopLogger())
	prov.settle = time.Millisecond
	return prov
}

func TestInitRepositoryRunsFullSequence(t *testing.T) {
	provider := newFakeProvider(t)
	prov := newTestProvisioner(provider)

	got, err := prov.InitRepository(context.Background(), "https://github.com/acme/shop", nil)
	require.NoError(t, err)
	assert.Equal(t, "sb-123", got.SandboxID)
	assert.Equal(t, "https://3000-sb-123.proxy.test", got.PublicURL)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	require.Equal(t, []string{
		"git clone https://github.com/acme/shop workspace/app",
		"npm install -g pm2",
		"npm install",
		"pm2 start npm --name app -- run dev",
	}, provider.commands)
}

func TestInitRepositoryInjectsEnvVars(t *testing.T) {
	provider := newFakeProvider(t)
	prov := newTestProvisioner(provider)

	_, err := prov.InitRepository(context.Background(), "https://github.com/acme/shop", map[string]string{
		"ANTHROPIC_API_KEY": "sk-test",
	})
	require.NoError(t, err)

	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Equal(t, "sk-test", provider.envVars["ANTHROPIC_API_KEY"])
}

func TestInitRepositoryFailedCommandAborts(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failCmd = "npm install"
	prov := newTestProvisioner(provider)

	_, err := prov.InitRepository(context.Background(), "https://github.com/acme/shop", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProvision))

	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "npm install", appErr.Context["command"])

	// the sequence stops at the failed step
	provider.mu.Lock()
	defer provider.mu.Unlock()
	assert.Len(t, provider.commands, 3)
}

func TestClientExecNonZeroExit(t *testing.T) {
	provider := newFakeProvider(t)
	provider.failCmd = "false"
	client := NewClient("k", provider.server.URL)

	result, err := client.Exec(context.Background(), "sb-123", "false", "", 0)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 1, result.ExitCode)
}

func TestClientSurfacesHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad-key", server.URL)
	_, err := client.Create(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeProvision))
	assert.Contains(t, err.Error(), "401")
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(Sandbox{ID: "sb-1"})
	}))
	defer server.Close()

	client := NewClient("secret", server.URL)
	_, err := client.Create(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("Bearer %s", "secret"), gotAuth)
}
