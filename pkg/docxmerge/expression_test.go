package docxmerge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evalExpr(t *testing.T, expr, jsonData string) Value {
	t.Helper()
	ctx := NewRootContext(mustParseJSON(jsonData))
	v, err := EvaluateExpression(expr, ctx)
	require.NoError(t, err)
	return v
}

func TestEvaluateExpressionPipelines(t *testing.T) {
	orders := `{"orders":[
		{"id":"ORD-001","amount":12.5},
		{"id":"ORD-002","amount":100},
		{"id":"ORD-003","amount":66.2}
	]}`

	t.Run("head only", func(t *testing.T) {
		v := evalExpr(t, "orders", orders)
		assert.Equal(t, ArrayValue, v.Kind())
		assert.Len(t, v.AsArray(), 3)
	})

	t.Run("sort ascending", func(t *testing.T) {
		v := evalExpr(t, "orders|sort:amount", orders)
		ids := idsOf(v)
		assert.Equal(t, []string{"ORD-001", "ORD-003", "ORD-002"}, ids)
	})

	t.Run("sort descending is the reverse", func(t *testing.T) {
		asc := idsOf(evalExpr(t, "orders|sort:amount:asc", orders))
		desc := idsOf(evalExpr(t, "orders|sort:amount:desc", orders))
		for i := range asc {
			assert.Equal(t, asc[i], desc[len(desc)-1-i])
		}
	})

	t.Run("sort then take", func(t *testing.T) {
		v := evalExpr(t, "orders|sort:amount:desc|take:2", orders)
		assert.Equal(t, []string{"ORD-002", "ORD-003"}, idsOf(v))
	})

	t.Run("sort does not alias the source", func(t *testing.T) {
		ctx := NewRootContext(mustParseJSON(orders))
		sorted, err := EvaluateExpression("orders|sort:amount:desc", ctx)
		require.NoError(t, err)
		sorted.AsArray()[0].AsObject().Set("id", String("MUTATED"))

		again, err := EvaluateExpression("orders", ctx)
		require.NoError(t, err)
		assert.Equal(t, "ORD-001", idsOf(again)[0])
	})

	t.Run("empty segments discarded", func(t *testing.T) {
		v := evalExpr(t, "orders||take:1", orders)
		assert.Len(t, v.AsArray(), 1)
	})

	t.Run("operator names are case-insensitive", func(t *testing.T) {
		v := evalExpr(t, "orders|SORT:amount:DESC|Take:1", orders)
		assert.Equal(t, []string{"ORD-002"}, idsOf(v))
	})
}

func idsOf(v Value) []string {
	var ids []string
	for _, item := range v.AsArray() {
		id, _ := item.AsObject().Get("id")
		ids = append(ids, id.Text())
	}
	return ids
}

func TestSortStability(t *testing.T) {
	data := `{"rows":[
		{"k":1,"tag":"a"},
		{"k":1,"tag":"b"},
		{"k":0,"tag":"c"},
		{"k":1,"tag":"d"}
	]}`
	v := evalExpr(t, "rows|sort:k:asc", data)
	var tags []string
	for _, item := range v.AsArray() {
		tag, _ := item.AsObject().Get("tag")
		tags = append(tags, tag.Text())
	}
	assert.Equal(t, []string{"c", "a", "b", "d"}, tags)
}

func TestSortComparisonRules(t *testing.T) {
	t.Run("nulls sort first", func(t *testing.T) {
		data := `{"rows":[{"k":2},{"x":0},{"k":1}]}`
		v := evalExpr(t, "rows|sort:k", data)
		first := v.AsArray()[0]
		_, hasK := first.AsObject().Get("k")
		assert.False(t, hasK)
	})

	t.Run("dates compare chronologically", func(t *testing.T) {
		data := `{"rows":[{"d":"2025-10-01"},{"d":"2025-02-01"},{"d":"2025-07-15"}]}`
		v := evalExpr(t, "rows|sort:d|first|get:d", data)
		assert.Equal(t, "2025-02-01", v.Text())
	})

	t.Run("text compares case-insensitively", func(t *testing.T) {
		data := `{"rows":[{"n":"beta"},{"n":"Alpha"},{"n":"gamma"}]}`
		v := evalExpr(t, "rows|sort:n|first|get:n", data)
		assert.Equal(t, "Alpha", v.Text())
	})
}

func TestTakeOperator(t *testing.T) {
	data := `{"items":[1,2,3]}`

	t.Run("zero yields empty array", func(t *testing.T) {
		v := evalExpr(t, "items|take:0", data)
		assert.Equal(t, ArrayValue, v.Kind())
		assert.Empty(t, v.AsArray())
	})

	t.Run("over length keeps all", func(t *testing.T) {
		v := evalExpr(t, "items|take:10", data)
		assert.Len(t, v.AsArray(), 3)
	})

	t.Run("non-integer argument", func(t *testing.T) {
		ctx := NewRootContext(mustParseJSON(data))
		_, err := EvaluateExpression("items|take:x", ctx)
		require.Error(t, err)
		assert.True(t, IsOperatorError(err))
	})

	t.Run("missing argument", func(t *testing.T) {
		ctx := NewRootContext(mustParseJSON(data))
		_, err := EvaluateExpression("items|take", ctx)
		require.Error(t, err)
		assert.True(t, IsOperatorError(err))
	})
}

func TestPositionalOperators(t *testing.T) {
	data := `{"items":["a","b","c","d"]}`

	tests := []struct {
		expr string
		want string
	}{
		{"items|first", "a"},
		{"items|last", "d"},
		{"items|nth:1", "a"},
		{"items|nth:3", "c"},
		{"items|nth:9", ""},
		{"items|at:0", "a"},
		{"items|at:2", "c"},
		{"items|at:-1", "d"},
		{"items|at:-4", "a"},
		{"items|at:-5", ""},
		{"items|at:7", ""},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.expr, data).Text())
		})
	}

	t.Run("empty array", func(t *testing.T) {
		empty := `{"items":[]}`
		assert.True(t, evalExpr(t, "items|first", empty).IsNull())
		assert.True(t, evalExpr(t, "items|last", empty).IsNull())
	})
}

func TestMaxByMinBy(t *testing.T) {
	data := `{"m":[
		{"month":"2025-01","revenue":80000},
		{"month":"2025-05","revenue":100000},
		{"month":"2025-03","revenue":100000},
		{"month":"2025-07","revenue":60000}
	]}`

	t.Run("maxby picks the maximum", func(t *testing.T) {
		v := evalExpr(t, "m|maxby:revenue|get:month", data)
		assert.Equal(t, "2025-05", v.Text())
	})

	t.Run("ties keep the first", func(t *testing.T) {
		v := evalExpr(t, "m|maxby:revenue|get:month", data)
		assert.Equal(t, "2025-05", v.Text())
	})

	t.Run("minby picks the minimum", func(t *testing.T) {
		v := evalExpr(t, "m|minby:revenue|get:month", data)
		assert.Equal(t, "2025-07", v.Text())
	})

	t.Run("empty array yields null", func(t *testing.T) {
		assert.True(t, evalExpr(t, "m|maxby:revenue", `{"m":[]}`).IsNull())
	})

	t.Run("missing key errors", func(t *testing.T) {
		ctx := NewRootContext(mustParseJSON(data))
		_, err := EvaluateExpression("m|maxby", ctx)
		require.Error(t, err)
		assert.True(t, IsOperatorError(err))
	})
}

func TestCountOperator(t *testing.T) {
	tests := []struct {
		expr string
		json string
		want string
	}{
		{"items|count", `{"items":[1,2,3]}`, "3"},
		{"obj|count", `{"obj":{"a":1,"b":2}}`, "2"},
		{"s|count", `{"s":"hello"}`, "5"},
		{"missing|count", `{}`, "0"},
		{"n|count", `{"n":7}`, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.expr, tt.json).Text())
		})
	}
}

func TestIfOperator(t *testing.T) {
	tests := []struct {
		expr string
		json string
		want string
	}{
		{"vip|if:VIP", `{"vip":true}`, "VIP"},
		{"vip|if:VIP", `{"vip":false}`, ""},
		{"vip|if:yes:no", `{"vip":false}`, "no"},
		{"name|if:present:absent", `{"name":"x"}`, "present"},
		{"missing|if:yes:no", `{}`, "no"},
	}
	for _, tt := range tests {
		t.Run(tt.expr+" "+tt.json, func(t *testing.T) {
			assert.Equal(t, tt.want, evalExpr(t, tt.expr, tt.json).Text())
		})
	}
}

func TestGetOperator(t *testing.T) {
	data := `{"m":[{"month":"2025-01"},{"month":"2025-07"}]}`
	v := evalExpr(t, "m|first|get:month", data)
	assert.Equal(t, "2025-01", v.Text())

	v = evalExpr(t, "m|last|pick:month", data)
	assert.Equal(t, "2025-07", v.Text())
}

func TestUnknownOperator(t *testing.T) {
	ctx := NewRootContext(mustParseJSON(`{"a":1}`))
	_, err := EvaluateExpression("a|frobnicate", ctx)
	require.Error(t, err)
	assert.True(t, IsOperatorError(err))
}

func TestRegisterOperator(t *testing.T) {
	RegisterOperator("double", func(operand Value, _ []string, _ *TemplateContext) (Value, error) {
		return Int(operand.AsInt() * 2), nil
	})
	defer delete(operators, "double")

	v := evalExpr(t, "n|double", `{"n":21}`)
	assert.Equal(t, "42", v.Text())
}
