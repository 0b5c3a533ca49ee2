package docxmerge

import (
	"strconv"
	"strings"
)

// pathSegment is one step of a parsed path: either a property name or an
// array index.
type pathSegment struct {
	name    string
	index   int
	isIndex bool
}

// parsePathSegments tokenises a dotted/indexed path such as "a.b[0].c".
// Name segments are trimmed and empty names are skipped; bracket segments
// must contain an integer.
func parsePathSegments(path string) ([]pathSegment, error) {
	var segments []pathSegment

	appendName := func(name string) {
		name = strings.TrimSpace(name)
		if name != "" {
			segments = append(segments, pathSegment{name: name})
		}
	}

	rest := path
	for rest != "" {
		dot := strings.IndexByte(rest, '.')
		bracket := strings.IndexByte(rest, '[')

		switch {
		case bracket >= 0 && (dot < 0 || bracket < dot):
			appendName(rest[:bracket])
			closing := strings.IndexByte(rest[bracket:], ']')
			if closing < 0 {
				return nil, NewPathError(path, "unterminated bracket index")
			}
			closing += bracket
			idxStr := strings.TrimSpace(rest[bracket+1 : closing])
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, NewPathError(path, "array index must be an integer: "+idxStr)
			}
			segments = append(segments, pathSegment{index: idx, isIndex: true})
			rest = rest[closing+1:]
			rest = strings.TrimPrefix(rest, ".")
		case dot >= 0:
			appendName(rest[:dot])
			rest = rest[dot+1:]
		default:
			appendName(rest)
			rest = ""
		}
	}

	return segments, nil
}

// resolveSegments is a pure traversal of a value tree with no scope walk.
// Missing properties and out-of-range indices resolve to null.
func resolveSegments(start Value, segments []pathSegment) Value {
	current := start
	for _, seg := range segments {
		if seg.isIndex {
			if current.Kind() != ArrayValue {
				return Null()
			}
			arr := current.AsArray()
			if seg.index < 0 || seg.index >= len(arr) {
				return Null()
			}
			current = arr[seg.index]
			continue
		}
		if current.Kind() != ObjectValue {
			return Null()
		}
		item, ok := current.AsObject().Get(seg.name)
		if !ok {
			return Null()
		}
		current = item
	}
	return current
}

// ResolveFrom evaluates a path against a specific value with no scope walk.
// Used by operators that project within an item, such as sort keys.
func ResolveFrom(start Value, path string) (Value, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "." {
		return start, nil
	}
	segments, err := parsePathSegments(path)
	if err != nil {
		return Null(), err
	}
	return resolveSegments(start, segments), nil
}

// ResolvePath evaluates a path expression against the context chain.
//
// "." yields the current value, "$" the root, and "$.rest" resolves rest
// against the root. Any other path resolves against the current frame first;
// a null result walks the parent chain and finally the root, returning the
// first non-null resolution.
func ResolvePath(path string, ctx *TemplateContext) (Value, error) {
	path = strings.TrimSpace(path)

	switch path {
	case ".":
		return ctx.Current(), nil
	case "$":
		return ctx.Root(), nil
	}

	if strings.HasPrefix(path, "$.") {
		segments, err := parsePathSegments(path[2:])
		if err != nil {
			return Null(), err
		}
		return resolveSegments(ctx.Root(), segments), nil
	}

	segments, err := parsePathSegments(path)
	if err != nil {
		return Null(), err
	}

	for frame := ctx; frame != nil; frame = frame.Parent() {
		if result := resolveSegments(frame.Current(), segments); !result.IsNull() {
			return result, nil
		}
	}

	if result := resolveSegments(ctx.Root(), segments); !result.IsNull() {
		return result, nil
	}

	return Null(), nil
}
