package adapter_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapscript/pkg/adapter"
	"github.com/leapstack-labs/leapscript/pkg/core"

	_ "github.com/leapstack-labs/leapscript/pkg/adapters/duckdb"
	_ "github.com/leapstack-labs/leapscript/pkg/adapters/postgres"
)

func TestRegistry_BuiltinAdapters(t *testing.T) {
	assert.Equal(t, []string{"duckdb", "postgres"}, filterBuiltin(adapter.ListAdapters()))

	for _, name := range []string{"duckdb", "postgres"} {
		factory, ok := adapter.Get(name)
		require.True(t, ok, name)
		a := factory(nil)
		require.NotNil(t, a, name)
		assert.Equal(t, name, a.Dialect().Name)
	}
}

// filterBuiltin drops adapters registered by other tests.
func filterBuiltin(names []string) []string {
	var out []string
	for _, n := range names {
		if n == "duckdb" || n == "postgres" {
			out = append(out, n)
		}
	}
	return out
}

func TestRegister(t *testing.T) {
	adapter.Register("test_adapter", func(_ *slog.Logger) adapter.Adapter { return nil })
	assert.True(t, adapter.IsRegistered("test_adapter"))
	assert.Contains(t, adapter.ListAdapters(), "test_adapter")

	assert.Panics(t, func() {
		adapter.Register("test_adapter", func(_ *slog.Logger) adapter.Adapter { return nil })
	}, "duplicate registration")
	assert.Panics(t, func() { adapter.Register("nil_factory", nil) })
}

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name        string
		cfg         core.AdapterConfig
		wantErr     error
		wantUnknown bool
	}{
		{name: "duckdb", cfg: core.AdapterConfig{Type: "duckdb", Path: ":memory:"}},
		{name: "postgres", cfg: core.AdapterConfig{Type: "postgres"}},
		{name: "empty type", cfg: core.AdapterConfig{}, wantErr: adapter.ErrNoAdapterType},
		{name: "unknown type", cfg: core.AdapterConfig{Type: "fake_db"}, wantUnknown: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := adapter.NewAdapter(tt.cfg, nil)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
			case tt.wantUnknown:
				var unknown *adapter.UnknownAdapterError
				require.ErrorAs(t, err, &unknown)
				assert.Equal(t, tt.cfg.Type, unknown.Type)
				assert.Contains(t, unknown.Available, "duckdb")
				assert.Contains(t, err.Error(), "leapscript.yaml")
			default:
				require.NoError(t, err)
				assert.NotNil(t, a)
			}
		})
	}
}
