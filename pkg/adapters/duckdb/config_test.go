package duckdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr string
	}{
		{name: "nil", input: nil, want: &Params{}},
		{name: "empty", input: map[string]any{}, want: &Params{}},
		{
			name:    "misspelled key",
			input:   map[string]any{"extension": []any{"httpfs"}},
			wantErr: "extension",
		},
		{
			name: "extensions and settings",
			input: map[string]any{
				"extensions": []any{"httpfs", "json"},
				// Weak typing turns the number into a string.
				"settings": map[string]any{"threads": 4, "memory_limit": "1GB"},
			},
			want: &Params{
				Extensions: []string{"httpfs", "json"},
				Settings:   map[string]string{"threads": "4", "memory_limit": "1GB"},
			},
		},
		{
			name: "secrets",
			input: map[string]any{
				"secrets": []any{
					map[string]any{"type": "s3", "provider": "credential_chain", "scope": "s3://landing"},
					map[string]any{
						"type":      "s3",
						"key_id":    "minio",
						"secret":    "minio123",
						"endpoint":  "localhost:9000",
						"url_style": "path",
						"use_ssl":   false,
						"scope":     []any{"s3://a", "s3://b"},
					},
				},
			},
			want: &Params{
				Secrets: []SecretConfig{
					{Type: "s3", Provider: "credential_chain", Scope: "s3://landing"},
					{
						Type:     "s3",
						KeyID:    "minio",
						Secret:   "minio123",
						Endpoint: "localhost:9000",
						URLStyle: "path",
						UseSSL:   boolPtr(false),
						Scope:    []any{"s3://a", "s3://b"},
					},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]string{"c": "", "a": "", "b": ""}))
	assert.Empty(t, sortedKeys(nil))
}

func boolPtr(b bool) *bool {
	return &b
}
