package ir

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	out, err := MarshalCanonical(map[string]any{
		"b": 1,
		"a": map[string]any{"z": true, "y": "x"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":"x","z":true},"b":1}`, string(out))
}

func TestMarshalCanonical_Numbers(t *testing.T) {
	out, err := MarshalCanonical([]any{50.0, 0.25, Num(-3), Bool(false), math.Copysign(0, -1)})
	require.NoError(t, err)
	assert.Equal(t, `[50,0.25,-3,false,0]`, string(out))
}

func TestMarshalCanonical_NoHTMLEscape(t *testing.T) {
	out, err := MarshalCanonical("a<b&c")
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c"`, string(out))
}

func TestMarshalCanonical_LineSeparatorsLiteral(t *testing.T) {
	out, err := MarshalCanonical("x\u2028y")
	require.NoError(t, err)
	assert.Equal(t, "\"x\u2028y\"", string(out))
}

func TestMarshalCanonical_Rejects(t *testing.T) {
	_, err := MarshalCanonical(nil)
	assert.Error(t, err)

	_, err = MarshalCanonical(math.NaN())
	assert.Error(t, err)

	_, err = MarshalCanonical(struct{}{})
	assert.Error(t, err)
}

func TestTagsDigest_OrderIndependent(t *testing.T) {
	a := []Tag{{ID: "x", Value: Bool(true)}, {ID: "y", Value: Num(2)}}
	b := []Tag{{ID: "y", Value: Num(2)}, {ID: "x", Value: Bool(true)}}

	da, err := TagsDigest(a)
	require.NoError(t, err)
	db, err := TagsDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)

	b[0].Value = Num(3)
	dc, err := TagsDigest(b)
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}
