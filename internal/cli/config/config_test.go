package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	// Import adapter packages to ensure adapters are registered via init()
	_ "github.com/leapstack-labs/leapscript/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapscript/pkg/adapters/postgres"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "leapscript.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const envsConfig = `seeds_dir: data
max_iterations: 50
target:
  type: duckdb
  database: dev.duckdb
  options:
    threads: "4"
environments:
  staging:
    target:
      database: staging.duckdb
      schema: staging
  ci:
    seeds_dir: fixtures
    target:
      database: ":memory:"
`

func TestLoadConfigWithTarget(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		target    string
		wantDB    string
		wantSch   string
		wantSeeds string
	}{
		{
			name:      "base target",
			content:   envsConfig,
			wantDB:    "dev.duckdb",
			wantSch:   "main",
			wantSeeds: "data",
		},
		{
			name:      "environment target merged",
			content:   envsConfig,
			target:    "staging",
			wantDB:    "staging.duckdb",
			wantSch:   "staging",
			wantSeeds: "data",
		},
		{
			name:      "environment seeds and memory database",
			content:   envsConfig,
			target:    "ci",
			wantDB:    ":memory:",
			wantSch:   "main",
			wantSeeds: "fixtures",
		},
		{
			name:      "unknown environment keeps base",
			content:   envsConfig,
			target:    "nonexistent",
			wantDB:    "dev.duckdb",
			wantSch:   "main",
			wantSeeds: "data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			path := writeConfig(t, tt.content)
			root := filepath.Dir(path)

			cfg, err := LoadConfigWithTarget(path, tt.target, nil)
			require.NoError(t, err)

			wantDB := tt.wantDB
			if wantDB != ":memory:" {
				wantDB = filepath.Join(root, wantDB)
			}
			assert.Equal(t, wantDB, cfg.Target.Database)
			assert.Equal(t, tt.wantSch, cfg.Target.Schema)
			assert.Equal(t, filepath.Join(root, tt.wantSeeds), cfg.SeedsDir)
			assert.Equal(t, filepath.Join(root, DefaultStateFile), cfg.StatePath)
			assert.Equal(t, "4", cfg.Target.Options["threads"])
			assert.Equal(t, 50, cfg.MaxIterations)
			assert.Equal(t, path, GetConfigFileUsed())
			assert.Same(t, cfg, GetCurrentConfig())
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "verbose: true\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultEnv, cfg.Environment)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	assert.False(t, cfg.Strict)
	assert.True(t, cfg.Verbose)
	require.NotNil(t, cfg.Target)
	assert.Equal(t, "duckdb", cfg.Target.Type)
}

func TestLoadConfig_InvalidTarget(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "target:\n  type: mysql\n")

	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid target configuration")
	assert.Contains(t, err.Error(), "mysql")
	assert.Contains(t, err.Error(), "duckdb", "error should list available adapters")
}

func TestLoadConfig_InvalidOutput(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "output: yaml\n")

	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestLoadConfig_Precedence(t *testing.T) {
	content := `environment: from_file
max_iterations: 10
`
	tests := []struct {
		name    string
		envVal  string
		flagVal string
		want    string
	}{
		{name: "file only", want: "from_file"},
		{name: "env over file", envVal: "from_env", want: "from_env"},
		{name: "flag over env", envVal: "from_env", flagVal: "from_flag", want: "from_flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			path := writeConfig(t, content)
			if tt.envVal != "" {
				t.Setenv("LEAPSCRIPT_ENVIRONMENT", tt.envVal)
			}

			flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
			flags.String("env", "", "environment")
			flags.Int("max-iterations", 0, "iteration limit")
			if tt.flagVal != "" {
				require.NoError(t, flags.Set("env", tt.flagVal))
			}

			cfg, err := LoadConfig(path, flags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.Environment)
			assert.Equal(t, 10, cfg.MaxIterations, "unset flag should not override the file")
		})
	}
}

func TestLoadConfig_EnvNumbers(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "")
	t.Setenv("LEAPSCRIPT_MAX_ITERATIONS", "25")
	t.Setenv("LEAPSCRIPT_STRICT", "true")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.MaxIterations)
	assert.True(t, cfg.Strict)
}

func TestLoadConfig_FlagPathsRelativeToCWD(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "seeds_dir: from_file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("seeds-dir", "", "")
	flags.String("state", "", "")
	require.NoError(t, flags.Set("seeds-dir", "flag_seeds"))
	require.NoError(t, flags.Set("state", "flag_state.db"))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	wantSeeds, _ := filepath.Abs("flag_seeds")
	wantState, _ := filepath.Abs("flag_state.db")
	assert.Equal(t, wantSeeds, cfg.SeedsDir)
	assert.Equal(t, wantState, cfg.StatePath)
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")
	t.Setenv("TEST_VAR_TWO", "value_two")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single variable", "${TEST_VAR_ONE}", "value_one"},
		{"multiple variables", "${TEST_VAR_ONE}/${TEST_VAR_TWO}", "value_one/value_two"},
		{"unset variable stays as-is", "${UNSET_VARIABLE}", "${UNSET_VARIABLE}"},
		{"no variables", "plain string", "plain string"},
		{"mixed set and unset", "${TEST_VAR_ONE}:${UNSET_VAR}", "value_one:${UNSET_VAR}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, expandEnvVars(tt.input))
		})
	}
}

func TestLoadConfig_TargetEnvVars(t *testing.T) {
	ResetConfig()
	t.Setenv("TEST_PG_USER", "etl")
	t.Setenv("TEST_PG_PASSWORD", "secret123")
	path := writeConfig(t, `target:
  type: postgres
  database: analytics
  user: ${TEST_PG_USER}
  password: ${TEST_PG_PASSWORD}
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "etl", cfg.Target.User)
	assert.Equal(t, "secret123", cfg.Target.Password)
	assert.Equal(t, "analytics", cfg.Target.Database, "postgres database names are not paths")
	assert.Equal(t, 5432, cfg.Target.Port)
}

func TestMergeTargetConfig(t *testing.T) {
	t.Run("nil base returns override", func(t *testing.T) {
		override := &TargetConfig{Type: "duckdb", Database: "test.db"}
		assert.Equal(t, override, MergeTargetConfig(nil, override))
	})

	t.Run("nil override returns base", func(t *testing.T) {
		base := &TargetConfig{Type: "duckdb", Database: "test.db"}
		assert.Equal(t, base, MergeTargetConfig(base, nil))
	})

	t.Run("override replaces base fields and merges options", func(t *testing.T) {
		base := &TargetConfig{
			Type:     "duckdb",
			Database: "base.db",
			Host:     "localhost",
			Options:  map[string]string{"key1": "base1", "key2": "base2"},
		}
		override := &TargetConfig{
			Database: "override.db",
			Options:  map[string]string{"key2": "over2"},
		}

		result := MergeTargetConfig(base, override)
		assert.Equal(t, "duckdb", result.Type)
		assert.Equal(t, "override.db", result.Database)
		assert.Equal(t, "localhost", result.Host)
		assert.Equal(t, map[string]string{"key1": "base1", "key2": "over2"}, result.Options)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{name: "valid", cfg: Config{Target: &TargetConfig{Type: "duckdb"}}},
		{name: "negative iterations", cfg: Config{MaxIterations: -1}, wantErr: "max_iterations"},
		{name: "bad output", cfg: Config{OutputFormat: "xml"}, wantErr: "unknown output format"},
		{name: "unknown adapter", cfg: Config{Target: &TargetConfig{Type: "oracle"}}, wantErr: "unknown adapter type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	logger := slog.New(slog.DiscardHandler)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	assert.Same(t, logger, GetLogger(ctx))
}
