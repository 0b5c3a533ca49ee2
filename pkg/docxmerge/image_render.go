package docxmerge

import (
	"fmt"
	"strings"
)

// emuPerPixel converts pixels to English Metric Units at 96 DPI
const emuPerPixel = 9525

// imagePart is an image registered for inclusion in the output package
type imagePart struct {
	RelID    string
	PartName string
	Format   ImageFormat
	Data     []byte
}

// imageStore allocates relationship IDs and non-visual property IDs for the
// drawings emitted during one render call. The property counter starts at
// one and increases monotonically in emission order.
type imageStore struct {
	nextRel  int
	nextID   int
	parts    []imagePart
}

func newImageStore(existingRels []Relationship) *imageStore {
	return &imageStore{
		nextRel: nextRelationshipID(existingRels),
		nextID:  1,
	}
}

// add registers image bytes as a new package part and returns its part record
func (s *imageStore) add(data []byte, format ImageFormat) imagePart {
	part := imagePart{
		RelID:    fmt.Sprintf("rId%d", s.nextRel),
		PartName: fmt.Sprintf("word/media/mergeImage%d.%s", len(s.parts)+1, format.Extension()),
		Format:   format,
		Data:     data,
	}
	s.nextRel++
	s.parts = append(s.parts, part)
	return part
}

// nextDocPrID hands out the next non-visual property ID
func (s *imageStore) nextDocPrID() int {
	id := s.nextID
	s.nextID++
	return id
}

// inlineDrawingXML builds the wp:inline drawing markup for one image run
func inlineDrawingXML(relID string, docPrID int, name string, cx, cy int64) string {
	var sb strings.Builder
	sb.WriteString(`<w:drawing><wp:inline distT="0" distB="0" distL="0" distR="0">`)
	fmt.Fprintf(&sb, `<wp:extent cx="%d" cy="%d"/>`, cx, cy)
	sb.WriteString(`<wp:effectExtent l="0" t="0" r="0" b="0"/>`)
	fmt.Fprintf(&sb, `<wp:docPr id="%d" name="%s"/>`, docPrID, xmlEscapeAttr(name))
	sb.WriteString(`<wp:cNvGraphicFramePr>`)
	sb.WriteString(`<a:graphicFrameLocks xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" noChangeAspect="1"/>`)
	sb.WriteString(`</wp:cNvGraphicFramePr>`)
	sb.WriteString(`<a:graphic xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">`)
	sb.WriteString(`<a:graphicData uri="http://schemas.openxmlformats.org/drawingml/2006/picture">`)
	sb.WriteString(`<pic:pic xmlns:pic="http://schemas.openxmlformats.org/drawingml/2006/picture">`)
	sb.WriteString(`<pic:nvPicPr>`)
	fmt.Fprintf(&sb, `<pic:cNvPr id="%d" name="%s"/>`, docPrID, xmlEscapeAttr(name))
	sb.WriteString(`<pic:cNvPicPr><a:picLocks noChangeAspect="1"/></pic:cNvPicPr>`)
	sb.WriteString(`</pic:nvPicPr>`)
	sb.WriteString(`<pic:blipFill>`)
	fmt.Fprintf(&sb, `<a:blip r:embed="%s" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships"/>`, relID)
	sb.WriteString(`<a:stretch><a:fillRect/></a:stretch>`)
	sb.WriteString(`</pic:blipFill>`)
	sb.WriteString(`<pic:spPr><a:xfrm><a:off x="0" y="0"/>`)
	fmt.Fprintf(&sb, `<a:ext cx="%d" cy="%d"/>`, cx, cy)
	sb.WriteString(`</a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></pic:spPr>`)
	sb.WriteString(`</pic:pic></a:graphicData></a:graphic></wp:inline></w:drawing>`)
	return sb.String()
}

// renderImageParagraph rewrites a paragraph whose whole text is one image
// directive into inline drawings. It reports whether it consumed the
// paragraph; a paragraph that mixes an image token with other text is left
// for normal inline processing.
func renderImageParagraph(p *Paragraph, ctx *TemplateContext, store *imageStore, cfg *Config) (bool, error) {
	tag, ok := ParseImageTag(p.GetText())
	if !ok {
		return false, nil
	}

	value, err := EvaluateExpression(tag.Expression, ctx)
	if err != nil {
		return false, err
	}

	payloads, err := ResolveImagePayloads(value, cfg)
	if err != nil {
		return false, err
	}

	// Drop the directive runs; non-run children stay in place.
	var kept []ParagraphChild
	for _, child := range p.Children {
		if _, isRun := child.(*Run); !isRun {
			kept = append(kept, child)
		}
	}
	p.Children = kept

	if tag.Centered {
		if p.Properties == nil {
			p.Properties = &ParagraphProperties{}
		}
		p.Properties.Alignment = "center"
	}

	for _, payload := range payloads {
		part := store.add(payload.Data, payload.Format)
		id := store.nextDocPrID()
		drawing := inlineDrawingXML(
			part.RelID,
			id,
			fmt.Sprintf("Image %d", id),
			int64(payload.Width)*emuPerPixel,
			int64(payload.Height)*emuPerPixel,
		)
		p.Children = append(p.Children, &Run{
			RawXML: []RawXMLElement{{Local: "drawing", Content: []byte(drawing)}},
		})
	}

	return true, nil
}
