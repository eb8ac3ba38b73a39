package evaluator

import (
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/leapstack-labs/leapscript/pkg/core"
)

type decimal string

func (d decimal) String() string { return string(d) }

func TestLiteral(t *testing.T) {
	ev := &Evaluator{dialect: &core.DialectConfig{Name: "duckdb"}}

	tests := []struct {
		name  string
		value any
		typ   string
		want  string
	}{
		{"null", nil, "", "NULL"},
		{"typed null stays null", nil, "INT", "NULL"},
		{"true", true, "", "TRUE"},
		{"false", false, "", "FALSE"},
		{"int", 42, "", "42"},
		{"negative int32", int32(-7), "", "(-7)"},
		{"negative float", -0.5, "", "(-0.5)"},
		{"negative big int", big.NewInt(-12), "", "(-12)"},
		{"negative big float", big.NewFloat(-1.5), "", "(-1.5)"},
		{"negative numeric stringer", decimal("-3.75"), "", "(-3.75)"},
		{"negative typed", int64(-3), "INT", "CAST((-3) AS INT)"},
		{"uint64", uint64(9), "", "9"},
		{"float", 2.5, "", "2.5"},
		{"whole float keeps a decimal point", float64(2), "", "2.0"},
		{"nan", math.NaN(), "", "CAST('NaN' AS FLOAT8)"},
		{"infinity", math.Inf(-1), "", "CAST('-Infinity' AS FLOAT8)"},
		{"string", "it's", "", "'it''s'"},
		{"bytes", []byte("ab"), "", "'ab'"},
		{"big int", big.NewInt(12345678901234), "", "12345678901234"},
		{"timestamp", time.Date(2024, 3, 1, 10, 30, 0, 500000000, time.UTC), "", "TIMESTAMP '2024-03-01 10:30:00.5'"},
		{"list", []any{int64(1), "a"}, "", "[1, 'a']"},
		{"struct", map[string]any{"b": 2, "a": 1}, "", "{'a': 1, 'b': 2}"},
		{"numeric stringer", decimal("1.25"), "", "1.25"},
		{"other stringer", uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"), "", "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{"typed", int64(3), "BIGINT", "CAST(3 AS BIGINT)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.literal(tt.value, tt.typ))
		})
	}
}

func TestLiteral_PostgresArray(t *testing.T) {
	ev := &Evaluator{dialect: &core.DialectConfig{Name: "postgres"}}
	assert.Equal(t, "ARRAY[1, 2]", ev.literal([]any{1, 2}, ""))
}
