package docxmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	t.Run("scalar kinds", func(t *testing.T) {
		tests := []struct {
			input string
			kind  ValueKind
		}{
			{`null`, NullValue},
			{`true`, BoolValue},
			{`42`, IntValue},
			{`3.14`, FloatValue},
			{`"hello"`, StringValue},
			{`[1,2]`, ArrayValue},
			{`{"a":1}`, ObjectValue},
		}
		for _, tt := range tests {
			v, err := ParseJSON(tt.input)
			require.NoError(t, err, tt.input)
			assert.Equal(t, tt.kind, v.Kind(), tt.input)
		}
	})

	t.Run("object preserves insertion order", func(t *testing.T) {
		v, err := ParseJSON(`{"z":1,"a":2,"m":3}`)
		require.NoError(t, err)
		assert.Equal(t, []string{"z", "a", "m"}, v.AsObject().Keys())
	})

	t.Run("integers stay integers", func(t *testing.T) {
		v, err := ParseJSON(`{"n":100}`)
		require.NoError(t, err)
		n, _ := v.AsObject().Get("n")
		assert.Equal(t, IntValue, n.Kind())
		assert.Equal(t, int64(100), n.AsInt())
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := ParseJSON(`{"a":`)
		require.Error(t, err)
		assert.True(t, IsJSONError(err))
	})

	t.Run("trailing garbage", func(t *testing.T) {
		_, err := ParseJSON(`{} {}`)
		require.Error(t, err)
	})
}

func TestValueText(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want string
	}{
		{"null", Null(), ""},
		{"string", String("abc"), "abc"},
		{"true", Bool(true), "True"},
		{"false", Bool(false), "False"},
		{"int", Int(42), "42"},
		{"float drops trailing zeros", Float(12.50), "12.5"},
		{"whole float", Float(100.0), "100"},
		{"array", mustParseJSON(`[1,"x"]`), `[1,"x"]`},
		{"object keeps order", mustParseJSON(`{"b":1,"a":2}`), `{"b":1,"a":2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.Text())
		})
	}
}

func TestValueTruthiness(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"empty string", String(""), false},
		{"blank string", String("   "), false},
		{"string", String("x"), true},
		{"zero int", Int(0), false},
		{"int", Int(-3), true},
		{"zero float", Float(0.0), false},
		{"tiny float", Float(1e-12), false},
		{"float", Float(0.5), true},
		{"empty array", Array(), false},
		{"array", Array(Int(1)), true},
		{"empty object", ObjectOf(NewObject()), false},
		{"object", mustParseJSON(`{"a":1}`), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.IsTruthy())
		})
	}
}

func TestValueCount(t *testing.T) {
	assert.Equal(t, int64(3), mustParseJSON(`[1,2,3]`).Count())
	assert.Equal(t, int64(2), mustParseJSON(`{"a":1,"b":2}`).Count())
	assert.Equal(t, int64(5), String("hello").Count())
	assert.Equal(t, int64(4), String("统计数据").Count())
	assert.Equal(t, int64(0), Null().Count())
	assert.Equal(t, int64(1), Int(99).Count())
}

func TestValueClone(t *testing.T) {
	original := mustParseJSON(`{"items":[{"n":1},{"n":2}]}`)
	cloned := original.Clone()

	items, _ := cloned.AsObject().Get("items")
	first := items.AsArray()[0]
	first.AsObject().Set("n", Int(99))

	origItems, _ := original.AsObject().Get("items")
	origN, _ := origItems.AsArray()[0].AsObject().Get("n")
	assert.Equal(t, int64(1), origN.AsInt())
}

func TestLoopItems(t *testing.T) {
	assert.Len(t, mustParseJSON(`[1,2,3]`).loopItems(), 3)
	assert.Len(t, mustParseJSON(`{"a":1}`).loopItems(), 1)
	assert.Empty(t, Null().loopItems())
	assert.Empty(t, Bool(false).loopItems())
	assert.Empty(t, String("").loopItems())
	assert.Len(t, String("x").loopItems(), 1)
}
