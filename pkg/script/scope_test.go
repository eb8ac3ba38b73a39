package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeStack_LookupInnermostFirst(t *testing.T) {
	s := NewScopeStack(NewScope())
	require.NoError(t, s.Declare("x", "INT", int64(1), false))

	s.Push(NewScope())
	require.NoError(t, s.Declare("X", "STRING", "inner", false))

	v, ok := s.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "inner", v.Value)

	s.Pop()
	v, ok = s.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, int64(1), v.Value)
}

func TestScopeStack_DeclareTwice(t *testing.T) {
	s := NewScopeStack(NewScope())
	require.NoError(t, s.Declare("v", "", 1, false))

	err := s.Declare("V", "", 2, false)
	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, CondVariableAlreadyExists, se.Condition)
	assert.Equal(t, "v", se.Param("variableName"))

	require.NoError(t, s.Declare("v", "", 2, true))
	v, _ := s.Lookup("v")
	assert.Equal(t, 2, v.Value)
}

func TestScopeStack_AssignNearest(t *testing.T) {
	s := NewScopeStack(NewScope())
	require.NoError(t, s.Declare("total", "", 0, false))
	s.Push(NewScope())

	require.NoError(t, s.Assign("TOTAL", 5))
	s.Pop()
	v, _ := s.Lookup("total")
	assert.Equal(t, 5, v.Value)

	err := s.Assign("missing", 1)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CondUnresolvedVariable, se.Condition)
}

func TestScopeStack_ResolveRecordField(t *testing.T) {
	s := NewScopeStack(rowScope([]string{"id", "Name"}, []any{int64(1), "ann"}, "row"))

	v, ok := s.Resolve("row", "name")
	require.True(t, ok)
	assert.Equal(t, "ann", v)

	v, ok = s.Resolve("id", "")
	require.True(t, ok)
	assert.Equal(t, int64(1), v)

	_, ok = s.Resolve("id", "field")
	assert.False(t, ok)

	rec, ok := s.Resolve("row", "")
	require.True(t, ok)
	assert.IsType(t, &Record{}, rec)

	assert.Equal(t, []string{"id", "name", "row"}, s.VisibleNames())
	assert.Equal(t, int64(1), s.Snapshot()["id"])
}

func TestNormalizeIdent(t *testing.T) {
	assert.Equal(t, "outer_loop", NormalizeIdent("OUTER_Loop"))
	assert.Equal(t, NormalizeIdent("STRASSE"), NormalizeIdent("straße"))
}
