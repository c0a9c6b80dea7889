package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statbridge/datatable"
	"statbridge/options"
)

// clearEnv unsets every variable Load reads for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}
	}
	// no ./statbridge.yaml from the package directory leaks in
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, datatable.DefaultPolicy(), cfg.Policy())
	assert.Equal(t, ".go", cfg.Forms.Extension)
	assert.Empty(t, cfg.Forms.PluginDir)
	assert.Equal(t, options.DefaultLayout(), cfg.Layout())
	assert.Equal(t, LoggingConfig{Level: "info", Format: "json", Output: "console", FilePath: "logs/statbridge.log"}, cfg.Logging)
}

func TestLoadEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATBRIDGE_IMPORT_THRESHOLD", "4")
	t.Setenv("STATBRIDGE_IMPORT_TEXT_ALWAYS_NOMINAL", "false")
	t.Setenv("STATBRIDGE_FORMS_PLUGIN_DIR", "/opt/forms")
	t.Setenv("STATBRIDGE_LOGGING_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Import.Threshold)
	assert.False(t, cfg.Policy().TextAlwaysNominal)
	assert.Equal(t, "/opt/forms", cfg.Forms.PluginDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFileOverlay(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATBRIDGE_LOGGING_LEVEL", "debug")

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
import:
  threshold: 3
  threshold_inclusive: false
wrapper:
  dir: gen
`), 0o644))
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Import.Threshold)
	assert.False(t, cfg.Import.ThresholdInclusive)
	assert.True(t, cfg.Import.OrderLabelsByValue)
	assert.Equal(t, options.Layout{Dir: "gen", Suffix: "Wrapper.R"}, cfg.Layout())
	// keys absent from the file keep their environment values
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaultFile(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(DefaultFile, []byte("forms:\n  extension: .form\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ".form", cfg.Forms.Extension)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad env value", env: map[string]string{"STATBRIDGE_IMPORT_THRESHOLD": "many"}},
		{name: "zero threshold", env: map[string]string{"STATBRIDGE_IMPORT_THRESHOLD": "0"}},
		{name: "unknown format", env: map[string]string{"STATBRIDGE_LOGGING_FORMAT": "xml"}},
		{name: "extension without dot", file: "forms:\n  extension: go\n"},
		{name: "unknown key", file: "imports:\n  threshold: 3\n"},
		{name: "malformed yaml", file: "import: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.file != "" {
				path := filepath.Join(t.TempDir(), "c.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
				t.Setenv(FileEnv, path)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(FileEnv, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
