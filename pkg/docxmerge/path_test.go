package docxmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	root := mustParseJSON(`{
		"patient": {"name": "Alice", "Name": "UPPER"},
		"report": {"items": [{"code": "A1"}, {"code": "B2"}]},
		"empty": null
	}`)
	ctx := NewRootContext(root)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"nested property", "patient.name", "Alice"},
		{"case sensitive key", "patient.Name", "UPPER"},
		{"indexed", "report.items[0].code", "A1"},
		{"second index", "report.items[1].code", "B2"},
		{"out of range", "report.items[5].code", ""},
		{"negative index", "report.items[-1].code", ""},
		{"missing key", "patient.age", ""},
		{"null value", "empty", ""},
		{"root marker", "$.patient.name", "Alice"},
		{"spaces around names", " patient . name ", "Alice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := ResolvePath(tt.path, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.Text())
		})
	}

	t.Run("dot yields current", func(t *testing.T) {
		child := ctx.Child(String("item"))
		v, err := ResolvePath(".", child)
		require.NoError(t, err)
		assert.Equal(t, "item", v.Text())
	})

	t.Run("dollar yields root", func(t *testing.T) {
		child := ctx.Child(String("item"))
		v, err := ResolvePath("$", child)
		require.NoError(t, err)
		assert.Equal(t, ObjectValue, v.Kind())
	})

	t.Run("invalid bracket index", func(t *testing.T) {
		_, err := ResolvePath("items[x]", ctx)
		require.Error(t, err)
		assert.True(t, IsPathError(err))
	})

	t.Run("unterminated bracket", func(t *testing.T) {
		_, err := ResolvePath("items[1", ctx)
		require.Error(t, err)
		assert.True(t, IsPathError(err))
	})
}

func TestResolvePathScopeWalk(t *testing.T) {
	root := mustParseJSON(`{
		"company": "Acme",
		"orders": [{"id": "ORD-1"}, {"id": "ORD-2"}]
	}`)
	ctx := NewRootContext(root)

	orders, err := ResolvePath("orders", ctx)
	require.NoError(t, err)

	item := ctx.Child(orders.AsArray()[0])

	t.Run("current frame wins", func(t *testing.T) {
		v, err := ResolvePath("id", item)
		require.NoError(t, err)
		assert.Equal(t, "ORD-1", v.Text())
	})

	t.Run("falls back to parent", func(t *testing.T) {
		v, err := ResolvePath("company", item)
		require.NoError(t, err)
		assert.Equal(t, "Acme", v.Text())
	})

	t.Run("nothing resolves to null", func(t *testing.T) {
		v, err := ResolvePath("missing", item)
		require.NoError(t, err)
		assert.True(t, v.IsNull())
	})

	t.Run("scope property", func(t *testing.T) {
		// whenever the current frame resolves a path, the scoped result
		// must be identical to the pure traversal
		direct, err := ResolveFrom(item.Current(), "id")
		require.NoError(t, err)
		scoped, err := ResolvePath("id", item)
		require.NoError(t, err)
		assert.Equal(t, direct.Text(), scoped.Text())
	})
}

func TestResolveFrom(t *testing.T) {
	item := mustParseJSON(`{"amount": 12.5, "meta": {"tag": "x"}}`)

	v, err := ResolveFrom(item, "amount")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v.AsFloat())

	v, err = ResolveFrom(item, "meta.tag")
	require.NoError(t, err)
	assert.Equal(t, "x", v.Text())

	v, err = ResolveFrom(item, ".")
	require.NoError(t, err)
	assert.Equal(t, ObjectValue, v.Kind())

	v, err = ResolveFrom(item, "missing.deep")
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}
