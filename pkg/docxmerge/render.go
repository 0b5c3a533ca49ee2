package docxmerge

import (
	"strings"
)

// renderer walks a document body and rewrites it against a context chain.
// One renderer serves one render call; it owns the image store so drawing
// IDs stay monotone across the whole document.
type renderer struct {
	cfg    *Config
	logger *Logger
	images *imageStore
}

func newRenderer(cfg *Config, images *imageStore) *renderer {
	return &renderer{
		cfg:    cfg,
		logger: GetLogger(),
		images: images,
	}
}

// RenderBody rewrites the body children in place
func (r *renderer) RenderBody(body *Body, ctx *TemplateContext) error {
	rendered, err := r.renderElements(body.Elements, ctx, 0)
	if err != nil {
		return err
	}
	body.Elements = rendered
	return nil
}

// renderElements rewrites an ordered child list: control marker pairs are
// matched by depth, loop blocks are cloned per iteration, conditional blocks
// are gated, and ordinary children are cloned and rendered recursively. The
// snapshot-then-rebuild shape avoids mutating a list while iterating it.
func (r *renderer) renderElements(elems []BodyElement, ctx *TemplateContext, depth int) ([]BodyElement, error) {
	if depth > r.cfg.MaxBlockDepth {
		return nil, NewTemplateError("maximum block nesting depth exceeded", "")
	}

	var out []BodyElement
	i := 0
	for i < len(elems) {
		el := elems[i]
		marker, isMarker := ClassifyMarker(elementText(el))

		if isMarker && marker.Kind.isStart() {
			end, err := r.findMatchingEnd(elems, i, marker)
			if err != nil {
				return nil, err
			}
			block := elems[i+1 : end]

			value, err := EvaluateExpression(marker.Expression, ctx)
			if err != nil {
				return nil, err
			}

			switch marker.Kind {
			case LoopStart:
				items := value.loopItems()
				if r.logger.IsDebugMode() {
					r.logger.WithFields(Fields{
						"expression": marker.Expression,
						"items":      len(items),
					}).Debug("expanding loop block")
				}
				for _, item := range items {
					rendered, err := r.renderElements(block, ctx.Child(item), depth+1)
					if err != nil {
						return nil, err
					}
					out = append(out, rendered...)
				}
			case IfStart:
				if value.IsTruthy() {
					rendered, err := r.renderElements(block, ctx, depth+1)
					if err != nil {
						return nil, err
					}
					out = append(out, rendered...)
				}
			}

			i = end + 1
			continue
		}

		if isMarker {
			// stray end marker at this level, emit nothing
			i++
			continue
		}

		cloned := CloneBodyElement(el)
		if err := r.renderElement(cloned, ctx, depth); err != nil {
			return nil, err
		}
		out = append(out, cloned)
		i++
	}

	return out, nil
}

// findMatchingEnd scans forward for the end marker that closes the start
// marker at startIdx. Depth counts markers of the same category only, and
// the matching end must carry the exact expression of the start.
func (r *renderer) findMatchingEnd(elems []BodyElement, startIdx int, start ControlMarker) (int, error) {
	category := start.Kind.category()
	depth := 0
	for j := startIdx + 1; j < len(elems); j++ {
		m, ok := ClassifyMarker(elementText(elems[j]))
		if !ok || m.Kind.category() != category {
			continue
		}
		if m.Kind.isStart() {
			depth++
			continue
		}
		if depth > 0 {
			depth--
			continue
		}
		if m.Expression != start.Expression {
			return 0, NewUnmatchedTagError(start.Expression, m.Expression)
		}
		return j, nil
	}
	return 0, NewUnclosedTagError(start.RawToken)
}

// renderElement renders a single cloned child in place
func (r *renderer) renderElement(el BodyElement, ctx *TemplateContext, depth int) error {
	switch e := el.(type) {
	case *Paragraph:
		consumed, err := renderImageParagraph(e, ctx, r.images, r.cfg)
		if err != nil {
			return err
		}
		if consumed {
			return nil
		}
		if err := r.replaceInlineTags(e, ctx); err != nil {
			return err
		}
		cleanEmptyRuns(e)
		return nil

	case *Table:
		rowElems := make([]BodyElement, len(e.Rows))
		for i := range e.Rows {
			rowElems[i] = &e.Rows[i]
		}
		rendered, err := r.renderElements(rowElems, ctx, depth+1)
		if err != nil {
			return err
		}
		rows := make([]TableRow, 0, len(rendered))
		for _, el := range rendered {
			if row, ok := el.(*TableRow); ok {
				rows = append(rows, *row)
			}
		}
		e.Rows = rows
		return nil

	case *TableRow:
		for i := range e.Cells {
			rendered, err := r.renderElements(e.Cells[i].Elements, ctx, depth+1)
			if err != nil {
				return err
			}
			e.Cells[i].Elements = rendered
		}
		return nil

	default:
		return nil
	}
}

// replaceInlineTags performs inline substitution over a paragraph. Word may
// split one directive across several adjacent text nodes, so two candidate
// replacements are computed: per node and over the concatenation. When they
// agree the per-node result is written back, preserving run boundaries and
// styles; when they differ a directive straddled runs, and the combined
// result lands in the first text node while the rest are emptied.
func (r *renderer) replaceInlineTags(p *Paragraph, ctx *TemplateContext) error {
	var texts []*Text
	for _, child := range p.Children {
		if run, ok := child.(*Run); ok && run.Text != nil {
			texts = append(texts, run.Text)
		}
	}
	if len(texts) == 0 {
		return nil
	}

	if len(texts) == 1 {
		replaced, err := r.replaceTagsInString(texts[0].Content, ctx)
		if err != nil {
			return err
		}
		texts[0].Content = replaced
		return nil
	}

	var combined strings.Builder
	for _, t := range texts {
		combined.WriteString(t.Content)
	}
	if !strings.ContainsAny(combined.String(), "{}") {
		return nil
	}

	combinedOut, err := r.replaceTagsInString(combined.String(), ctx)
	if err != nil {
		return err
	}

	perNode := make([]string, len(texts))
	for i, t := range texts {
		perNode[i], err = r.replaceTagsInString(t.Content, ctx)
		if err != nil {
			return err
		}
	}

	if strings.Join(perNode, "") == combinedOut {
		for i, t := range texts {
			t.Content = perNode[i]
		}
		return nil
	}

	texts[0].Content = combinedOut
	for _, t := range texts[1:] {
		t.Content = ""
	}
	return nil
}

// replaceTagsInString expands every recognised directive in a string.
// Control tokens are stripped, image tokens stay verbatim for the paragraph
// level, and unrecognised tokens pass through as literal text.
func (r *renderer) replaceTagsInString(s string, ctx *TemplateContext) (string, error) {
	matches := inlineTagRegex.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(s[last:m[0]])
		inner := strings.TrimSpace(s[m[2]:m[3]])

		switch {
		case isControlToken(inner):
			// block effect was handled at the composite level
		case isImageToken(inner):
			sb.WriteString(s[m[0]:m[1]])
		case isExpressionDirective(inner):
			value, err := EvaluateExpression(inner, ctx)
			if err != nil {
				return "", err
			}
			sb.WriteString(value.Text())
		default:
			if r.cfg.StrictMode {
				return "", NewTemplateError("unrecognised directive", s[m[0]:m[1]])
			}
			sb.WriteString(s[m[0]:m[1]])
		}
		last = m[1]
	}
	sb.WriteString(s[last:])
	return sb.String(), nil
}

// cleanEmptyRuns removes runs left without any content. Word can refuse to
// open documents with stray empty runs.
func cleanEmptyRuns(p *Paragraph) {
	var kept []ParagraphChild
	for _, child := range p.Children {
		run, ok := child.(*Run)
		if !ok {
			kept = append(kept, child)
			continue
		}
		hasText := run.Text != nil && run.Text.Content != ""
		if hasText || run.Break != nil || len(run.RawXML) > 0 {
			kept = append(kept, child)
		}
	}
	p.Children = kept
}
