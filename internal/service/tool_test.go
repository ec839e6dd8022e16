package service

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolConfig_Resolve(t *testing.T) {
	cfg := newToolConfig(t)
	cfg.Getenv = func(key string) string {
		if key == "PYTHONPATH" {
			return "/opt/lib"
		}
		return ""
	}

	inv, err := cfg.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, "upython", inv.Executable)
	assert.Equal(t, filepath.Join(cfg.MetricsDir, "understandMetrics.py"), inv.Script)
	assert.Equal(t, cfg.ProjectRoot, inv.Dir, "missing tool home falls back to project root")
	assert.Equal(t, []string{"PYTHONPATH=/opt/lib" + string(os.PathListSeparator) + cfg.MetricsDir}, inv.Env)

	cmd := inv.Command("/tmp/repos/widget_1")
	assert.Equal(t, []string{inv.Script, "/tmp/repos/widget_1"}, cmd.Args)
	assert.Equal(t, inv.Dir, cmd.Dir)
}

func TestToolConfig_ResolveWithHome(t *testing.T) {
	cfg := newToolConfig(t)
	cfg.Home = t.TempDir()
	cfg.Getenv = func(key string) string {
		if key == "PATH" {
			return "/usr/bin"
		}
		return ""
	}

	inv, err := cfg.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, cfg.Home, inv.Dir)

	bin := filepath.Join(cfg.Home, "bin", "linux64")
	assert.Contains(t, inv.Env, "SCITOOLS_DIR="+cfg.Home)
	assert.Contains(t, inv.Env, "PATH=/usr/bin"+string(os.PathListSeparator)+bin)
	assert.Contains(t, inv.Env, "PYTHONPATH="+cfg.MetricsDir)
}

func TestToolConfig_ResolveErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ToolConfig)
		wantMsg string
	}{
		{
			name:    "missing project root",
			mutate:  func(c *ToolConfig) { c.ProjectRoot = filepath.Join(c.ProjectRoot, "nope") },
			wantMsg: "Current working directory is invalid",
		},
		{
			name:    "missing metrics dir",
			mutate:  func(c *ToolConfig) { c.MetricsDir = filepath.Join(c.ProjectRoot, "nope") },
			wantMsg: "Metrics directory not found at expected location",
		},
		{
			name:    "missing script",
			mutate:  func(c *ToolConfig) { c.ScriptName = "other.py" },
			wantMsg: "Cannot locate other.py script.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newToolConfig(t)
			tt.mutate(&cfg)

			_, err := cfg.Resolve(nil)
			require.Error(t, err)
			assert.True(t, strings.HasPrefix(err.Error(), tt.wantMsg), err.Error())

			var setupErr *ToolSetupError
			require.True(t, errors.As(err, &setupErr))
			assert.Equal(t, "tool_setup", setupErr.ErrorClass())
		})
	}
}

func TestAppendPathList(t *testing.T) {
	sep := string(os.PathListSeparator)
	assert.Equal(t, "/a", appendPathList("", "/a"))
	assert.Equal(t, "/x"+sep+"/a", appendPathList("/x", "/a"))
	assert.Equal(t, "/a"+sep+"/x", appendPathList("/a"+sep+"/x", "/a"), "present entries are not duplicated")
	assert.Equal(t, "/x"+sep+"/a", appendPathList("/x"+sep, "/a"))
}
