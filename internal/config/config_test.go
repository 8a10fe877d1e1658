package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/history"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitpress.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "git:\n  repository: https://example.com/blog.git\n"))
	require.NoError(t, err)

	assert.Equal(t, "main", cfg.Git.Branch)
	assert.Equal(t, 30*time.Second, cfg.Git.FetchTimeout)
	assert.Equal(t, "posts/*.md", cfg.Content.Posts)
	assert.Equal(t, "/{year}/{month}/{day}/{slug}", cfg.URLs.Post)
	assert.Equal(t, time.Duration(0), cfg.Settings.UpdateInterval)
	assert.Equal(t, 10, cfg.Settings.IndexSize)
	assert.Equal(t, "localhost:6893", cfg.Addr())
	assert.Equal(t, time.UTC, cfg.Location())
	assert.Equal(t, history.FirstParent, cfg.Baseline())

	scopes := cfg.Scopes()
	require.Len(t, scopes, 2)
	assert.Equal(t, content.KindPost, scopes[0].Kind)
	assert.Equal(t, content.KindPage, scopes[1].Kind)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
git:
  repository: https://example.com/blog.git
  branch: trunk
  fetch_timeout: 5s
  merge_baseline: empty
urls:
  post: /posts/{year}/{slug}
settings:
  timezone: Asia/Tokyo
  update_token: secret
  update_interval: 10m
server:
  port: 8080
`))
	require.NoError(t, err)

	assert.Equal(t, "trunk", cfg.Git.Branch)
	assert.Equal(t, 5*time.Second, cfg.Git.FetchTimeout)
	assert.Equal(t, history.EmptyTree, cfg.Baseline())
	assert.Equal(t, "Asia/Tokyo", cfg.Location().String())
	assert.Equal(t, "secret", cfg.Settings.UpdateToken)
	assert.Equal(t, 10*time.Minute, cfg.Settings.UpdateInterval)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/posts/{year}/{slug}", cfg.Scopes()[0].Pattern.String())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("GITPRESS_GIT_BRANCH", "release")
	t.Setenv("GITPRESS_SETTINGS_UPDATE_TOKEN", "from-env")

	cfg, err := Load(writeConfig(t, "git:\n  repository: https://example.com/blog.git\n"))
	require.NoError(t, err)
	assert.Equal(t, "release", cfg.Git.Branch)
	assert.Equal(t, "from-env", cfg.Settings.UpdateToken)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"missing repository": "git:\n  branch: main\n",
		"bad timezone":       "git:\n  repository: r\nsettings:\n  timezone: Mars/Olympus\n",
		"bad pattern":        "git:\n  repository: r\nurls:\n  post: /{year}\n",
		"bad baseline":       "git:\n  repository: r\n  merge_baseline: octopus\n",
		"bad port":           "git:\n  repository: r\nserver:\n  port: 70000\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.ErrorIs(t, err, errs.ErrConfig)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, errs.ErrConfig)
}
