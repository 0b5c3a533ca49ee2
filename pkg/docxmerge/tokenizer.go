package docxmerge

import (
	"regexp"
	"strings"
)

var (
	// inlineTagRegex matches a single-brace directive embedded in text
	inlineTagRegex = regexp.MustCompile(`\{([^{}]+)\}`)
	// wholeTagRegex matches text that consists of exactly one directive
	wholeTagRegex = regexp.MustCompile(`^\{([^{}]+)\}$`)
	// pathHeadRegex validates the head path of an expression directive:
	// segments separated by '.' or bracketed integer indices, with no
	// whitespace or reserved characters inside a segment
	pathHeadRegex = regexp.MustCompile(`^[^.\[\]|{}:\s]+(?:\.[^.\[\]|{}:\s]+|\[-?\d+\])*$`)
	// operatorNameRegex validates a pipe operator identifier
	operatorNameRegex = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
)

// MarkerKind classifies a whole-paragraph control directive
type MarkerKind int

const (
	MarkerNone MarkerKind = iota
	LoopStart
	LoopEnd
	IfStart
	IfEnd
)

func (k MarkerKind) String() string {
	switch k {
	case LoopStart:
		return "loop start"
	case LoopEnd:
		return "loop end"
	case IfStart:
		return "if start"
	case IfEnd:
		return "if end"
	default:
		return "none"
	}
}

// isStart reports whether the marker opens a block
func (k MarkerKind) isStart() bool {
	return k == LoopStart || k == IfStart
}

// category groups loop markers and conditional markers for depth matching
func (k MarkerKind) category() MarkerKind {
	switch k {
	case LoopStart, LoopEnd:
		return LoopStart
	case IfStart, IfEnd:
		return IfStart
	default:
		return MarkerNone
	}
}

// ControlMarker is a classified whole-paragraph control directive
type ControlMarker struct {
	Kind       MarkerKind
	Expression string
	RawToken   string
}

// ClassifyMarker inspects the concatenated descendant text of an element and
// returns its control marker, if any. Only text that is a single directive
// after trimming qualifies; the inner token must carry a control prefix.
// Image tokens are not control markers.
func ClassifyMarker(text string) (ControlMarker, bool) {
	inner, ok := wholeTagToken(text)
	if !ok {
		return ControlMarker{}, false
	}

	var kind MarkerKind
	var expr string
	switch {
	case strings.HasPrefix(inner, "#"):
		kind, expr = LoopStart, inner[1:]
	case strings.HasPrefix(inner, "/?"):
		kind, expr = IfEnd, inner[2:]
	case strings.HasPrefix(inner, "?"):
		kind, expr = IfStart, inner[1:]
	case strings.HasPrefix(inner, "/"):
		kind, expr = LoopEnd, inner[1:]
	default:
		return ControlMarker{}, false
	}

	return ControlMarker{
		Kind:       kind,
		Expression: strings.TrimSpace(expr),
		RawToken:   inner,
	}, true
}

// ImageTag is a parsed whole-paragraph image directive
type ImageTag struct {
	Expression string
	Centered   bool
}

// ParseImageTag recognises a paragraph whose entire text is one {%expr} or
// {%%expr} directive. A doubled percent sign requests centering.
func ParseImageTag(text string) (ImageTag, bool) {
	inner, ok := wholeTagToken(text)
	if !ok || !strings.HasPrefix(inner, "%") {
		return ImageTag{}, false
	}

	centered := strings.HasPrefix(inner, "%%")
	expr := strings.TrimPrefix(inner, "%")
	expr = strings.TrimPrefix(expr, "%")

	return ImageTag{
		Expression: strings.TrimSpace(expr),
		Centered:   centered,
	}, true
}

// wholeTagToken returns the trimmed inner token when the trimmed text is
// exactly one directive
func wholeTagToken(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	m := wholeTagRegex.FindStringSubmatch(trimmed)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// isControlToken reports whether an inline token carries a control prefix.
// Such tokens are stripped from inline text; their block effect was handled
// at the paragraph level.
func isControlToken(inner string) bool {
	return strings.HasPrefix(inner, "#") ||
		strings.HasPrefix(inner, "?") ||
		strings.HasPrefix(inner, "/")
}

// isImageToken reports whether an inline token is an image directive
func isImageToken(inner string) bool {
	return strings.HasPrefix(inner, "%")
}

// isExpressionDirective reports whether an inner token matches the
// expression directive grammar. Tokens that do not match pass through the
// renderer as literal text.
func isExpressionDirective(inner string) bool {
	head, ops := splitPipeline(inner)
	if head == "" {
		return false
	}

	if head != "." && head != "$" {
		rest := strings.TrimPrefix(head, "$.")
		if !pathHeadRegex.MatchString(rest) {
			return false
		}
	}

	for _, op := range ops {
		if !operatorNameRegex.MatchString(op.name) {
			return false
		}
	}
	return true
}
