package value

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumberCoercion(t *testing.T) {
	n, err := ToNumber(Bool(true))
	require.NoError(t, err)
	assert.True(t, n.Equal(decimal.NewFromInt(1)))

	n, err = ToNumber(Bool(false))
	require.NoError(t, err)
	assert.True(t, n.IsZero())

	n, err = ToNumber(Empty())
	require.NoError(t, err)
	assert.True(t, n.IsZero())

	n, err = ToNumber(Text("1.5e2"))
	require.NoError(t, err)
	assert.True(t, n.Equal(decimal.NewFromInt(150)))

	_, err = ToNumber(Text("not a number"))
	require.Error(t, err)
	var ce *CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrValue, ce.Kind)

	_, err = ToNumber(Error(ErrRef))
	require.Error(t, err)
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrRef, ce.Kind)
}

func TestToTextCoercion(t *testing.T) {
	s, err := ToText(Bool(true))
	require.NoError(t, err)
	assert.Equal(t, "TRUE", s)

	s, err = ToText(Bool(false))
	require.NoError(t, err)
	assert.Equal(t, "FALSE", s)

	s, err = ToText(Empty())
	require.NoError(t, err)
	assert.Equal(t, "", s)

	s, err = ToText(Num(decimal.NewFromFloat(42.5)))
	require.NoError(t, err)
	assert.Equal(t, "42.5", s)
}

func TestToBoolCoercion(t *testing.T) {
	b, err := ToBool(Text("true"))
	require.NoError(t, err)
	assert.True(t, b)

	b, err = ToBool(Num(decimal.Zero))
	require.NoError(t, err)
	assert.False(t, b)

	_, err = ToBool(Text("maybe"))
	require.Error(t, err)
}

func TestDivByZero(t *testing.T) {
	_, err := Div(decimal.NewFromInt(10), decimal.Zero)
	require.Error(t, err)
	var ce *CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrDiv0, ce.Kind)
}

func TestDivPrecision(t *testing.T) {
	// BigDecimal(425)/3 must match the mathematical value to within 1e-15.
	result, err := Div(decimal.NewFromInt(425), decimal.NewFromInt(3))
	require.NoError(t, err)
	want := decimal.RequireFromString("141.66666666666666666667")
	diff := result.Sub(want).Abs()
	tolerance := decimal.NewFromFloat(1e-15)
	assert.True(t, diff.LessThan(tolerance), "diff=%s", diff.String())
}

func TestPowConventions(t *testing.T) {
	r, err := Pow(decimal.Zero, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, r.Equal(decimal.NewFromInt(1)))

	_, err = Pow(decimal.NewFromInt(-2), decimal.NewFromFloat(0.5))
	require.Error(t, err)
	var ce *CoercionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrNum, ce.Kind)
}

func TestSerialRoundTrip(t *testing.T) {
	now := DateOnly(excelEpoch.AddDate(10, 0, 3))
	serial := TimeToSerial(now)
	back := SerialToTime(serial)
	assert.Equal(t, now.Year(), back.Year())
	assert.Equal(t, now.YearDay(), back.YearDay())
}

func TestFormulaCacheInvariant(t *testing.T) {
	nested := Formula("=1", nil)
	outer := Formula("=A1", &nested)
	assert.True(t, outer.Formula.Cached.IsError())
	assert.Equal(t, ErrValue, outer.Formula.Cached.Err)
}
