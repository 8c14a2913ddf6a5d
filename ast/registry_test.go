package ast

import (
	"testing"

	"github.com/calcengine/formulacore/address"
	"github.com/calcengine/formulacore/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookupIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register(&FunctionSpec{Name: "SUM", Args: []ArgSpec{VariadicRange()}})

	for _, name := range []string{"SUM", "sum", "Sum"} {
		spec, ok := r.Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, "SUM", spec.Name)
	}
	_, ok := r.Lookup("NOPE")
	assert.False(t, ok)
	assert.Equal(t, []string{"SUM"}, r.AllNames())
}

func TestArity(t *testing.T) {
	spec := &FunctionSpec{Name: "F", Args: []ArgSpec{
		Scalar(DecodeNumber), Scalar(DecodeNumber), OptionalScalar(DecodeNumber),
	}}
	assert.Equal(t, 2, spec.MinArgs())
	assert.Equal(t, 3, spec.MaxArgs())

	variadic := &FunctionSpec{Name: "G", Args: []ArgSpec{VariadicRange()}}
	assert.Equal(t, 0, variadic.MinArgs())
	assert.Equal(t, -1, variadic.MaxArgs())
}

func TestResolveTypesReplacesPolyRefs(t *testing.T) {
	at := address.ARef{Col: 0, Row: 0}
	// A1 + A1: both operands of arithmetic resolve to numeric refs.
	expr := NewArith(Position{}, OpAdd,
		NewPolyRef(Position{}, at, address.RelativeAnchor),
		NewPolyRef(Position{}, at, address.RelativeAnchor))
	resolved := ResolveTypes(expr, DecodeAny).(*Arith)

	left, ok := resolved.Left.(*Ref)
	require.True(t, ok)
	assert.Equal(t, DecodeNumber, left.Decoder)

	// Concat operands resolve to text.
	cat := NewConcat(Position{},
		NewPolyRef(Position{}, at, address.RelativeAnchor),
		NewLit(Position{}, value.Text("x")))
	catResolved := ResolveTypes(cat, DecodeAny).(*Concat)
	cleft, ok := catResolved.Left.(*Ref)
	require.True(t, ok)
	assert.Equal(t, DecodeText, cleft.Decoder)

	// A bare PolyRef at the root takes the caller's expected decoder.
	root := ResolveTypes(NewPolyRef(Position{}, at, address.RelativeAnchor), DecodeBool).(*Ref)
	assert.Equal(t, DecodeBool, root.Decoder)

	// No PolyRef survives resolution anywhere in the tree.
	Walk(resolved, func(e Expr) {
		_, isPoly := e.(*PolyRef)
		assert.False(t, isPoly)
	})
}

func TestDecoderApply(t *testing.T) {
	v, err := DecodeNumber.Apply(value.Text("42"))
	require.NoError(t, err)
	assert.Equal(t, value.KindNumber, v.Kind)

	_, err = DecodeNumber.Apply(value.Text("nope"))
	require.Error(t, err)

	// Errors propagate through every decoder, including DecodeAny.
	_, err = DecodeAny.Apply(value.Error(value.ErrRef))
	require.Error(t, err)

	passthrough, err := DecodeAny.Apply(value.Bool(true))
	require.NoError(t, err)
	assert.Equal(t, value.KindBool, passthrough.Kind)
}
