package appshell

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carehub/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
app_id: app.carehub.mobile
app_name: CareHub
version: "1"
deep_links:
  schemes: [carehub]
  associated_domains: [applinks:carehub.app]
  routes:
    /groups/:id: CareGroup
    /claims/:id: Claim
push:
  badge: true
  sound: true
  alert: true
permissions:
  camera: Scan insurance cards and share photos with your care team.
  photos: Attach photos to messages and tasks.
  location: Find nearby care facilities.
  notifications: Get task reminders and claim updates.
  microphone: Record voice notes for your care group.
`

func TestParse_Valid(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	assert.Equal(t, []string{"carehub"}, cfg.DeepLinks.Schemes)
	assert.Equal(t, "CareGroup", cfg.DeepLinks.Routes["/groups/:id"])
	assert.True(t, cfg.Push.Badge)
	assert.Contains(t, cfg.Perms.Location, "facilities")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"no schemes", func(c *Config) { c.DeepLinks.Schemes = nil }, "deep_links.schemes must not be empty"},
		{"scheme with separator", func(c *Config) { c.DeepLinks.Schemes = []string{"carehub://"} }, "invalid scheme"},
		{"blank permission", func(c *Config) { c.Perms.Microphone = "  " }, "permissions.microphone"},
		{"relative route", func(c *Config) { c.DeepLinks.Routes["home"] = "Home" }, "invalid route"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(validYAML))
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app-shell.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	w, err := NewWatcher(path, logger.NewTestLogger(t))
	require.NoError(t, err)
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// An invalid edit is ignored.
	require.NoError(t, os.WriteFile(path, []byte("app_id: x\n"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, "1", w.Current().Version)

	updated := strings.Replace(validYAML, `version: "1"`, `version: "2"`, 1)
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	assert.Eventually(t, func() bool {
		return w.Current().Version == "2"
	}, 2*time.Second, 20*time.Millisecond)
}
