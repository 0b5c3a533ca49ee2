package docxmerge

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/tiendc/go-deepcopy"
)

// BodyElement represents any element that can appear in a document body or
// table cell: paragraphs, tables, table rows during row-level rewriting, and
// preserved raw elements.
type BodyElement interface {
	isBodyElement()
}

// ParagraphChild represents ordered paragraph content: runs and preserved
// raw elements such as bookmarks.
type ParagraphChild interface {
	isParagraphChild()
}

// RawXMLElement preserves an element the engine does not interpret. Content
// holds the complete serialized element including its own tags.
type RawXMLElement struct {
	Local   string
	Content []byte
}

// RawBlock wraps a preserved element so it can sit among body elements or
// paragraph children.
type RawBlock struct {
	Raw RawXMLElement
}

func (r *RawBlock) isBodyElement()    {}
func (r *RawBlock) isParagraphChild() {}

// Document represents the main document part
type Document struct {
	rootTag string // original <w:document ...> start tag, namespaces intact
	Body    *Body
}

// Body represents the document body
type Body struct {
	Elements          []BodyElement
	SectionProperties *RawXMLElement
}

// Paragraph represents a paragraph in the document
type Paragraph struct {
	Properties *ParagraphProperties
	Children   []ParagraphChild
}

func (p *Paragraph) isBodyElement() {}

// ParagraphProperties represents paragraph formatting. Alignment is parsed
// out so the image renderer can centre paragraphs; everything else is
// preserved raw.
type ParagraphProperties struct {
	Alignment string
	Raw       []RawXMLElement
}

// Run represents a run of text with common properties
type Run struct {
	Properties *RawXMLElement
	Text       *Text
	Break      *Break
	RawXML     []RawXMLElement
}

func (r *Run) isParagraphChild() {}

// Text represents text content
type Text struct {
	Space   string
	Content string
}

// Break represents a line break
type Break struct {
	Type string
}

// Table represents a table in the document
type Table struct {
	Properties *RawXMLElement
	Grid       *RawXMLElement
	Rows       []TableRow
	Extra      []RawXMLElement
}

func (t *Table) isBodyElement() {}

// TableRow represents a row in a table. Rows implement BodyElement so the
// renderer can rewrite a table's row list with the same block machinery it
// uses for body children.
type TableRow struct {
	Properties *RawXMLElement
	Cells      []TableCell
	Extra      []RawXMLElement
}

func (r *TableRow) isBodyElement() {}

// TableCell represents a cell in a table
type TableCell struct {
	Properties *RawXMLElement
	Elements   []BodyElement
}

var documentRootRegex = regexp.MustCompile(`<w:document[^>]*>`)

// ParseDocument parses the main document part, preserving the original root
// tag with its namespace declarations.
func ParseDocument(content []byte) (*Document, error) {
	rootTag := documentRootRegex.Find(content)
	if rootTag == nil {
		return nil, NewDocumentError("parse", "document.xml", fmt.Errorf("no w:document root element found"))
	}

	doc := &Document{rootTag: string(rootTag)}
	decoder := xml.NewDecoder(bytes.NewReader(content))

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewDocumentError("parse", "document.xml", err)
		}

		if start, ok := token.(xml.StartElement); ok && start.Name.Local == "body" {
			body, err := parseBody(decoder)
			if err != nil {
				return nil, NewDocumentError("parse", "document.xml", err)
			}
			doc.Body = body
		}
	}

	if doc.Body == nil {
		doc.Body = &Body{}
	}
	return doc, nil
}

func parseBody(d *xml.Decoder) (*Body, error) {
	body := &Body{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				para, err := parseParagraph(d)
				if err != nil {
					return nil, err
				}
				body.Elements = append(body.Elements, para)
			case "tbl":
				table, err := parseTable(d)
				if err != nil {
					return nil, err
				}
				body.Elements = append(body.Elements, table)
			case "sectPr":
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				body.SectionProperties = &raw
			default:
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				body.Elements = append(body.Elements, &RawBlock{Raw: raw})
			}
		case xml.EndElement:
			if t.Name.Local == "body" {
				return body, nil
			}
		}
	}
}

func parseParagraph(d *xml.Decoder) (*Paragraph, error) {
	para := &Paragraph{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				props, err := parseParagraphProperties(d)
				if err != nil {
					return nil, err
				}
				para.Properties = props
			case "r":
				run, err := parseRun(d)
				if err != nil {
					return nil, err
				}
				para.Children = append(para.Children, run)
			default:
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				para.Children = append(para.Children, &RawBlock{Raw: raw})
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				return para, nil
			}
		}
	}
}

func parseParagraphProperties(d *xml.Decoder) (*ParagraphProperties, error) {
	props := &ParagraphProperties{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "jc" {
				for _, attr := range t.Attr {
					if attr.Name.Local == "val" {
						props.Alignment = attr.Value
					}
				}
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			raw, err := captureRawElement(d, t)
			if err != nil {
				return nil, err
			}
			props.Raw = append(props.Raw, raw)
		case xml.EndElement:
			if t.Name.Local == "pPr" {
				return props, nil
			}
		}
	}
}

func parseRun(d *xml.Decoder) (*Run, error) {
	run := &Run{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				run.Properties = &raw
			case "t":
				var text struct {
					Space   string `xml:"space,attr"`
					Content string `xml:",chardata"`
				}
				if err := d.DecodeElement(&text, &t); err != nil {
					return nil, err
				}
				run.Text = &Text{Space: text.Space, Content: text.Content}
			case "br":
				var br Break
				for _, attr := range t.Attr {
					if attr.Name.Local == "type" {
						br.Type = attr.Value
					}
				}
				if err := d.Skip(); err != nil {
					return nil, err
				}
				run.Break = &br
			default:
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				run.RawXML = append(run.RawXML, raw)
			}
		case xml.EndElement:
			if t.Name.Local == "r" {
				return run, nil
			}
		}
	}
}

func parseTable(d *xml.Decoder) (*Table, error) {
	table := &Table{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tblPr":
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				table.Properties = &raw
			case "tblGrid":
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				table.Grid = &raw
			case "tr":
				row, err := parseTableRow(d)
				if err != nil {
					return nil, err
				}
				table.Rows = append(table.Rows, *row)
			default:
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				table.Extra = append(table.Extra, raw)
			}
		case xml.EndElement:
			if t.Name.Local == "tbl" {
				return table, nil
			}
		}
	}
}

func parseTableRow(d *xml.Decoder) (*TableRow, error) {
	row := &TableRow{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "trPr":
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				row.Properties = &raw
			case "tc":
				cell, err := parseTableCell(d)
				if err != nil {
					return nil, err
				}
				row.Cells = append(row.Cells, *cell)
			default:
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				row.Extra = append(row.Extra, raw)
			}
		case xml.EndElement:
			if t.Name.Local == "tr" {
				return row, nil
			}
		}
	}
}

func parseTableCell(d *xml.Decoder) (*TableCell, error) {
	cell := &TableCell{}
	for {
		token, err := d.Token()
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tcPr":
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				cell.Properties = &raw
			case "p":
				para, err := parseParagraph(d)
				if err != nil {
					return nil, err
				}
				cell.Elements = append(cell.Elements, para)
			case "tbl":
				table, err := parseTable(d)
				if err != nil {
					return nil, err
				}
				cell.Elements = append(cell.Elements, table)
			default:
				raw, err := captureRawElement(d, t)
				if err != nil {
					return nil, err
				}
				cell.Elements = append(cell.Elements, &RawBlock{Raw: raw})
			}
		case xml.EndElement:
			if t.Name.Local == "tc" {
				return cell, nil
			}
		}
	}
}

// namespaceToPrefix converts a namespace URI to its conventional prefix
func namespaceToPrefix(uri string) string {
	prefixMap := map[string]string{
		"http://schemas.openxmlformats.org/wordprocessingml/2006/main":           "w",
		"http://schemas.openxmlformats.org/officeDocument/2006/relationships":    "r",
		"http://schemas.openxmlformats.org/officeDocument/2006/math":             "m",
		"http://www.w3.org/XML/1998/namespace":                                   "xml",
		"http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing": "wp",
		"http://schemas.openxmlformats.org/drawingml/2006/main":                  "a",
		"http://schemas.openxmlformats.org/drawingml/2006/picture":               "pic",
		"http://schemas.microsoft.com/office/word/2010/wordprocessingDrawing":    "wp14",
		"http://schemas.microsoft.com/office/drawing/2010/main":                  "a14",
		"urn:schemas-microsoft-com:vml":                                          "v",
		"urn:schemas-microsoft-com:office:office":                                "o",
		"urn:schemas-microsoft-com:office:word":                                  "w10",
		"http://schemas.openxmlformats.org/markup-compatibility/2006":            "mc",
		"http://schemas.microsoft.com/office/word/2010/wordprocessingShape":      "wps",
		"http://schemas.microsoft.com/office/word/2010/wordprocessingCanvas":     "wpc",
		"http://schemas.microsoft.com/office/word/2010/wordprocessingGroup":      "wpg",
		"http://schemas.microsoft.com/office/word/2010/wordprocessingInk":        "wpi",
		"http://schemas.microsoft.com/office/word/2010/wordml":                   "w14",
		"http://schemas.microsoft.com/office/word/2012/wordml":                   "w15",
		"http://schemas.microsoft.com/office/word/2006/wordml":                   "wne",
	}

	if prefix, ok := prefixMap[uri]; ok {
		return prefix
	}
	return uri
}

// captureRawElement reads an entire element subtree from the decoder and
// re-serializes it with conventional namespace prefixes.
func captureRawElement(d *xml.Decoder, start xml.StartElement) (RawXMLElement, error) {
	var buf strings.Builder
	writeStartTag := func(t xml.StartElement) {
		buf.WriteString("<")
		if t.Name.Space != "" {
			buf.WriteString(namespaceToPrefix(t.Name.Space))
			buf.WriteString(":")
		}
		buf.WriteString(t.Name.Local)
		for _, attr := range t.Attr {
			buf.WriteString(" ")
			if attr.Name.Space != "" {
				buf.WriteString(namespaceToPrefix(attr.Name.Space))
				buf.WriteString(":")
			}
			buf.WriteString(attr.Name.Local)
			buf.WriteString("=\"")
			buf.WriteString(xmlEscapeAttr(attr.Value))
			buf.WriteString("\"")
		}
		buf.WriteString(">")
	}
	writeEndTag := func(t xml.EndElement) {
		buf.WriteString("</")
		if t.Name.Space != "" {
			buf.WriteString(namespaceToPrefix(t.Name.Space))
			buf.WriteString(":")
		}
		buf.WriteString(t.Name.Local)
		buf.WriteString(">")
	}

	writeStartTag(start)
	depth := 1
	for depth > 0 {
		tok, err := d.Token()
		if err != nil {
			return RawXMLElement{}, err
		}
		switch tt := tok.(type) {
		case xml.StartElement:
			depth++
			writeStartTag(tt)
		case xml.EndElement:
			depth--
			writeEndTag(tt)
		case xml.CharData:
			buf.WriteString(xmlEscapeText(string(tt)))
		}
	}

	return RawXMLElement{
		Local:   start.Name.Local,
		Content: []byte(buf.String()),
	}, nil
}

func xmlEscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

func xmlEscapeAttr(s string) string {
	s = xmlEscapeText(s)
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// Marshal serializes the document back to XML, reusing the original root tag
// so every namespace declaration survives the round trip.
func (d *Document) Marshal() []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sb.WriteString("\n")
	sb.WriteString(d.rootTag)
	sb.WriteString("<w:body>")
	if d.Body != nil {
		for _, el := range d.Body.Elements {
			writeBodyElement(&sb, el)
		}
		if d.Body.SectionProperties != nil {
			sb.Write(d.Body.SectionProperties.Content)
		}
	}
	sb.WriteString("</w:body></w:document>")
	return []byte(sb.String())
}

func writeBodyElement(sb *strings.Builder, el BodyElement) {
	switch e := el.(type) {
	case *Paragraph:
		e.writeXML(sb)
	case *Table:
		e.writeXML(sb)
	case *TableRow:
		e.writeXML(sb)
	case *RawBlock:
		sb.Write(e.Raw.Content)
	}
}

func (p *Paragraph) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:p>")
	if p.Properties != nil && (len(p.Properties.Raw) > 0 || p.Properties.Alignment != "") {
		sb.WriteString("<w:pPr>")
		for _, raw := range p.Properties.Raw {
			sb.Write(raw.Content)
		}
		if p.Properties.Alignment != "" {
			sb.WriteString(`<w:jc w:val="`)
			sb.WriteString(xmlEscapeAttr(p.Properties.Alignment))
			sb.WriteString(`"/>`)
		}
		sb.WriteString("</w:pPr>")
	}
	for _, child := range p.Children {
		switch c := child.(type) {
		case *Run:
			c.writeXML(sb)
		case *RawBlock:
			sb.Write(c.Raw.Content)
		}
	}
	sb.WriteString("</w:p>")
}

func (r *Run) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:r>")
	if r.Properties != nil {
		sb.Write(r.Properties.Content)
	}
	if r.Text != nil {
		content := r.Text.Content
		if r.Text.Space == "preserve" || content != strings.TrimSpace(content) {
			sb.WriteString(`<w:t xml:space="preserve">`)
		} else {
			sb.WriteString("<w:t>")
		}
		sb.WriteString(xmlEscapeText(content))
		sb.WriteString("</w:t>")
	}
	if r.Break != nil {
		if r.Break.Type != "" {
			sb.WriteString(`<w:br w:type="`)
			sb.WriteString(xmlEscapeAttr(r.Break.Type))
			sb.WriteString(`"/>`)
		} else {
			sb.WriteString("<w:br/>")
		}
	}
	for _, raw := range r.RawXML {
		sb.Write(raw.Content)
	}
	sb.WriteString("</w:r>")
}

func (t *Table) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:tbl>")
	if t.Properties != nil {
		sb.Write(t.Properties.Content)
	}
	if t.Grid != nil {
		sb.Write(t.Grid.Content)
	}
	for i := range t.Rows {
		t.Rows[i].writeXML(sb)
	}
	for _, raw := range t.Extra {
		sb.Write(raw.Content)
	}
	sb.WriteString("</w:tbl>")
}

func (r *TableRow) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:tr>")
	if r.Properties != nil {
		sb.Write(r.Properties.Content)
	}
	for i := range r.Cells {
		r.Cells[i].writeXML(sb)
	}
	for _, raw := range r.Extra {
		sb.Write(raw.Content)
	}
	sb.WriteString("</w:tr>")
}

func (c *TableCell) writeXML(sb *strings.Builder) {
	sb.WriteString("<w:tc>")
	if c.Properties != nil {
		sb.Write(c.Properties.Content)
	}
	for _, el := range c.Elements {
		writeBodyElement(sb, el)
	}
	sb.WriteString("</w:tc>")
}

// GetText returns the text content of a run
func (r *Run) GetText() string {
	if r.Text == nil {
		return ""
	}
	return r.Text.Content
}

// GetText returns the concatenated text of all runs in a paragraph
func (p *Paragraph) GetText() string {
	var sb strings.Builder
	for _, child := range p.Children {
		if run, ok := child.(*Run); ok {
			sb.WriteString(run.GetText())
		}
	}
	return sb.String()
}

// GetText returns the concatenated text of all paragraphs in a cell
func (c *TableCell) GetText() string {
	var sb strings.Builder
	for _, el := range c.Elements {
		sb.WriteString(elementText(el))
	}
	return sb.String()
}

// GetText returns the concatenated text of all cells in a row
func (r *TableRow) GetText() string {
	var sb strings.Builder
	for i := range r.Cells {
		sb.WriteString(r.Cells[i].GetText())
	}
	return sb.String()
}

// GetText returns the concatenated text of all rows in a table
func (t *Table) GetText() string {
	var sb strings.Builder
	for i := range t.Rows {
		sb.WriteString(t.Rows[i].GetText())
	}
	return sb.String()
}

// elementText returns the concatenated descendant text of a body element
func elementText(el BodyElement) string {
	switch e := el.(type) {
	case *Paragraph:
		return e.GetText()
	case *Table:
		return e.GetText()
	case *TableRow:
		return e.GetText()
	default:
		return ""
	}
}

// Clone returns a deep copy of the run subtree
func (r *Run) Clone() *Run {
	cloned := &Run{}
	if err := deepcopy.Copy(cloned, r); err != nil {
		// Concrete exported fields only, so this cannot fail in practice;
		// fall back to a shallow copy to keep rendering going.
		shallow := *r
		return &shallow
	}
	return cloned
}

// Clone returns a deep copy of the paragraph
func (p *Paragraph) Clone() *Paragraph {
	cloned := &Paragraph{}
	if p.Properties != nil {
		props := &ParagraphProperties{}
		if err := deepcopy.Copy(props, p.Properties); err == nil {
			cloned.Properties = props
		} else {
			shallow := *p.Properties
			cloned.Properties = &shallow
		}
	}
	for _, child := range p.Children {
		switch c := child.(type) {
		case *Run:
			cloned.Children = append(cloned.Children, c.Clone())
		case *RawBlock:
			cloned.Children = append(cloned.Children, &RawBlock{Raw: cloneRawXMLElement(c.Raw)})
		}
	}
	return cloned
}

// Clone returns a deep copy of the table
func (t *Table) Clone() *Table {
	cloned := &Table{}
	if t.Properties != nil {
		raw := cloneRawXMLElement(*t.Properties)
		cloned.Properties = &raw
	}
	if t.Grid != nil {
		raw := cloneRawXMLElement(*t.Grid)
		cloned.Grid = &raw
	}
	for i := range t.Rows {
		cloned.Rows = append(cloned.Rows, *t.Rows[i].Clone())
	}
	for _, raw := range t.Extra {
		cloned.Extra = append(cloned.Extra, cloneRawXMLElement(raw))
	}
	return cloned
}

// Clone returns a deep copy of the table row
func (r *TableRow) Clone() *TableRow {
	cloned := &TableRow{}
	if r.Properties != nil {
		raw := cloneRawXMLElement(*r.Properties)
		cloned.Properties = &raw
	}
	for i := range r.Cells {
		cell := r.Cells[i]
		clonedCell := TableCell{}
		if cell.Properties != nil {
			raw := cloneRawXMLElement(*cell.Properties)
			clonedCell.Properties = &raw
		}
		for _, el := range cell.Elements {
			clonedCell.Elements = append(clonedCell.Elements, CloneBodyElement(el))
		}
		cloned.Cells = append(cloned.Cells, clonedCell)
	}
	for _, raw := range r.Extra {
		cloned.Extra = append(cloned.Extra, cloneRawXMLElement(raw))
	}
	return cloned
}

// cloneRawXMLElement creates a deep copy of a RawXMLElement
func cloneRawXMLElement(raw RawXMLElement) RawXMLElement {
	content := make([]byte, len(raw.Content))
	copy(content, raw.Content)
	return RawXMLElement{
		Local:   raw.Local,
		Content: content,
	}
}

// CloneBodyElement creates a deep copy of any body element
func CloneBodyElement(el BodyElement) BodyElement {
	switch e := el.(type) {
	case *Paragraph:
		return e.Clone()
	case *Table:
		return e.Clone()
	case *TableRow:
		return e.Clone()
	case *RawBlock:
		return &RawBlock{Raw: cloneRawXMLElement(e.Raw)}
	default:
		return el
	}
}
