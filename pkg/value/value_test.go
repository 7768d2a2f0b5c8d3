package value

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruthy(t *testing.T) {
	require.False(t, NewNil().Truthy())
	require.False(t, NewBool(false).Truthy())
	require.True(t, NewBool(true).Truthy())
	require.True(t, NewNumber(0).Truthy())
	require.True(t, NewString("").Truthy())
}

func TestAdd_Numbers(t *testing.T) {
	v, err := Add(NewNumber(1), NewNumber(2))
	require.NoError(t, err)
	require.Equal(t, 3.0, v.Number())
}

func TestAdd_StringConcat(t *testing.T) {
	v, err := Add(NewString("a"), NewNumber(1))
	require.NoError(t, err)
	require.Equal(t, "a1", v.Str())
}

func TestAdd_TypeMismatch(t *testing.T) {
	_, err := Add(NewBool(true), NewBool(false))
	require.Error(t, err)
}

func TestDiv_ByZero(t *testing.T) {
	_, err := Div(NewNumber(1), NewNumber(0))
	require.Error(t, err)
}

func TestCompare_MixedTypesFails(t *testing.T) {
	_, err := Compare("<", NewNumber(1), NewString("a"))
	require.Error(t, err)
}

func TestCompare_Strings(t *testing.T) {
	v, err := Compare("<", NewString("a"), NewString("b"))
	require.NoError(t, err)
	require.True(t, v.Bool())
}

func TestEqual_ListsByReference(t *testing.T) {
	l1 := NewList([]Value{NewNumber(1)})
	l2 := NewList([]Value{NewNumber(1)})
	require.False(t, Equal(l1, l2))
	require.True(t, Equal(l1, l1))
}

func TestDictValue_SetGet(t *testing.T) {
	d := NewDict()
	require.NoError(t, d.Set(NewString("a"), NewNumber(1)))
	v, ok, err := d.Get(NewString("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1.0, v.Number())
}

func TestDictValue_ListKeyRejected(t *testing.T) {
	d := NewDict()
	err := d.Set(NewList(nil), NewNumber(1))
	require.Error(t, err)
}

func TestListReferenceSemantics(t *testing.T) {
	l := NewList([]Value{NewNumber(1)})
	alias := l
	alias.List().Items[0] = NewNumber(99)
	require.Equal(t, 99.0, l.List().Items[0].Number())
}
