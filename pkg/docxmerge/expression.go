package docxmerge

import (
	"sort"
	"strconv"
	"strings"
)

// OperatorFunc is the signature of a pipe operator. Operators receive the
// piped operand, the raw colon-separated arguments and the evaluation
// context, and return the next operand in the pipeline.
type OperatorFunc func(operand Value, args []string, ctx *TemplateContext) (Value, error)

// operators is the pipe operator registry. RegisterOperator is the extension
// point for callers that need custom operators.
var operators = map[string]OperatorFunc{
	"sort":   opSort,
	"take":   opTake,
	"count":  opCount,
	"first":  opFirst,
	"last":   opLast,
	"nth":    opNth,
	"at":     opAt,
	"maxby":  opMaxBy,
	"minby":  opMinBy,
	"get":    opGet,
	"pick":   opGet,
	"if":     opIf,
	"format": opFormat,
}

// RegisterOperator adds or replaces a pipe operator. The name is matched
// case-insensitively.
func RegisterOperator(name string, fn OperatorFunc) {
	operators[strings.ToLower(name)] = fn
}

// pipelineOp is a parsed operator invocation
type pipelineOp struct {
	name string
	args []string
}

// splitPipeline splits an expression on '|' into the head path and operator
// invocations, discarding empty segments.
func splitPipeline(expr string) (string, []pipelineOp) {
	segments := strings.Split(expr, "|")
	head := ""
	var ops []pipelineOp
	for _, seg := range segments {
		trimmed := strings.TrimSpace(seg)
		if trimmed == "" {
			continue
		}
		if head == "" && len(ops) == 0 {
			head = trimmed
			continue
		}
		parts := strings.Split(trimmed, ":")
		ops = append(ops, pipelineOp{
			name: strings.ToLower(strings.TrimSpace(parts[0])),
			args: parts[1:],
		})
	}
	return head, ops
}

// EvaluateExpression evaluates a pipe expression: the head path is resolved
// against the context chain, then each operator is applied left-to-right.
func EvaluateExpression(expr string, ctx *TemplateContext) (Value, error) {
	head, ops := splitPipeline(expr)
	if head == "" {
		return Null(), nil
	}

	operand, err := ResolvePath(head, ctx)
	if err != nil {
		return Null(), err
	}

	for _, op := range ops {
		fn, ok := operators[op.name]
		if !ok {
			return Null(), NewOperatorError(op.name, "unknown operator")
		}
		operand, err = fn(operand, op.args, ctx)
		if err != nil {
			return Null(), err
		}
	}

	return operand, nil
}

// compareValues orders two values for sort, maxby and minby: null sorts
// before non-null, numerics compare numerically, strings that both parse as
// timestamps compare chronologically, and everything else compares by its
// case-insensitive textual rendering.
func compareValues(a, b Value) int {
	aNull, bNull := a.IsNull(), b.IsNull()
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return -1
	case bNull:
		return 1
	}

	if a.IsNumeric() && b.IsNumeric() {
		af, bf := a.AsFloat(), b.AsFloat()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	if a.Kind() == StringValue && b.Kind() == StringValue {
		if at, ok := parseDateTime(a.AsString()); ok {
			if bt, ok := parseDateTime(b.AsString()); ok {
				switch {
				case at.Before(bt):
					return -1
				case at.After(bt):
					return 1
				default:
					return 0
				}
			}
		}
	}

	return strings.Compare(strings.ToLower(a.Text()), strings.ToLower(b.Text()))
}

func opSort(operand Value, args []string, _ *TemplateContext) (Value, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Null(), NewOperatorError("sort", "missing sort key")
	}
	if operand.Kind() != ArrayValue {
		return operand, nil
	}

	key := strings.TrimSpace(args[0])
	descending := len(args) > 1 && strings.EqualFold(strings.TrimSpace(args[1]), "desc")

	src := operand.AsArray()
	items := make([]Value, len(src))
	copy(items, src)

	keys := make([]Value, len(items))
	for i, item := range items {
		k, err := ResolveFrom(item, key)
		if err != nil {
			return Null(), err
		}
		keys[i] = k
	}

	indices := make([]int, len(items))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return compareValues(keys[indices[i]], keys[indices[j]]) < 0
	})
	if descending {
		for i, j := 0, len(indices)-1; i < j; i, j = i+1, j-1 {
			indices[i], indices[j] = indices[j], indices[i]
		}
	}

	result := make([]Value, len(items))
	for pos, idx := range indices {
		result[pos] = items[idx].Clone()
	}
	return Array(result...), nil
}

func opTake(operand Value, args []string, _ *TemplateContext) (Value, error) {
	if len(args) == 0 {
		return Null(), NewOperatorError("take", "missing count argument")
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Null(), NewOperatorError("take", "count must be an integer: "+args[0])
	}
	if operand.Kind() != ArrayValue {
		return operand, nil
	}
	src := operand.AsArray()
	if n <= 0 {
		return Array(), nil
	}
	if n > len(src) {
		n = len(src)
	}
	result := make([]Value, n)
	for i := 0; i < n; i++ {
		result[i] = src[i].Clone()
	}
	return Array(result...), nil
}

func opCount(operand Value, _ []string, _ *TemplateContext) (Value, error) {
	return Int(operand.Count()), nil
}

func opFirst(operand Value, _ []string, _ *TemplateContext) (Value, error) {
	if operand.Kind() != ArrayValue || len(operand.AsArray()) == 0 {
		return Null(), nil
	}
	return operand.AsArray()[0], nil
}

func opLast(operand Value, _ []string, _ *TemplateContext) (Value, error) {
	arr := operand.AsArray()
	if operand.Kind() != ArrayValue || len(arr) == 0 {
		return Null(), nil
	}
	return arr[len(arr)-1], nil
}

func opNth(operand Value, args []string, _ *TemplateContext) (Value, error) {
	if operand.Kind() != ArrayValue || len(args) == 0 {
		return Null(), nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Null(), nil
	}
	arr := operand.AsArray()
	idx := n - 1
	if idx < 0 || idx >= len(arr) {
		return Null(), nil
	}
	return arr[idx], nil
}

func opAt(operand Value, args []string, _ *TemplateContext) (Value, error) {
	if operand.Kind() != ArrayValue || len(args) == 0 {
		return Null(), nil
	}
	idx, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return Null(), nil
	}
	arr := operand.AsArray()
	if idx < 0 {
		idx += len(arr)
	}
	if idx < 0 || idx >= len(arr) {
		return Null(), nil
	}
	return arr[idx], nil
}

func opMaxBy(operand Value, args []string, _ *TemplateContext) (Value, error) {
	return selectBy(operand, args, "maxby", 1)
}

func opMinBy(operand Value, args []string, _ *TemplateContext) (Value, error) {
	return selectBy(operand, args, "minby", -1)
}

// selectBy picks the element whose key compares strictly better than the
// running best; ties keep the earliest element.
func selectBy(operand Value, args []string, name string, direction int) (Value, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Null(), NewOperatorError(name, "missing key")
	}
	if operand.Kind() != ArrayValue {
		return Null(), nil
	}
	arr := operand.AsArray()
	if len(arr) == 0 {
		return Null(), nil
	}

	key := strings.TrimSpace(args[0])
	best := arr[0]
	bestKey, err := ResolveFrom(best, key)
	if err != nil {
		return Null(), err
	}
	for _, item := range arr[1:] {
		k, err := ResolveFrom(item, key)
		if err != nil {
			return Null(), err
		}
		if compareValues(k, bestKey)*direction > 0 {
			best = item
			bestKey = k
		}
	}
	return best, nil
}

func opGet(operand Value, args []string, _ *TemplateContext) (Value, error) {
	if len(args) == 0 || strings.TrimSpace(args[0]) == "" {
		return Null(), NewOperatorError("get", "missing path argument")
	}
	return ResolveFrom(operand, args[0])
}

func opIf(operand Value, args []string, _ *TemplateContext) (Value, error) {
	trueText, falseText := "", ""
	if len(args) > 0 {
		trueText = args[0]
	}
	if len(args) > 1 {
		falseText = args[1]
	}
	if operand.IsTruthy() {
		return String(trueText), nil
	}
	return String(falseText), nil
}
