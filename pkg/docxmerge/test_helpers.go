// test_helpers.go contains functions that are exposed only for testing purposes.
// These should not be used in production code.

package docxmerge

import (
	"archive/zip"
	"bytes"
	"strings"
)

const testContentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`

const testRootRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`

const testDocumentRelsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/></Relationships>`

const testDocumentPrefix = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships" xmlns:wp="http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><w:body>`

const testDocumentSuffix = `</w:body></w:document>`

// createDocxBytes assembles a minimal DOCX package around the given body XML
func createDocxBytes(bodyXML string) []byte {
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	parts := []struct {
		name    string
		content string
	}{
		{"[Content_Types].xml", testContentTypesXML},
		{"_rels/.rels", testRootRelsXML},
		{"word/_rels/document.xml.rels", testDocumentRelsXML},
		{"word/document.xml", testDocumentPrefix + bodyXML + testDocumentSuffix},
	}
	for _, part := range parts {
		fw, err := w.Create(part.name)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write([]byte(part.content)); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// newTestZip writes a zip with the given parts into buf
func newTestZip(buf *bytes.Buffer, parts map[string]string) {
	w := zip.NewWriter(buf)
	for name, content := range parts {
		fw, err := w.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			panic(err)
		}
	}
	if err := w.Close(); err != nil {
		panic(err)
	}
}

// paragraphXML builds a single-run paragraph
func paragraphXML(text string) string {
	return "<w:p><w:r><w:t>" + xmlEscapeText(text) + "</w:t></w:r></w:p>"
}

// docFromParagraphs builds a DOCX whose body holds one single-run paragraph
// per text
func docFromParagraphs(texts ...string) []byte {
	var body strings.Builder
	for _, text := range texts {
		body.WriteString(paragraphXML(text))
	}
	return createDocxBytes(body.String())
}

// extractPart reads one part out of rendered package bytes
func extractPart(docxBytes []byte, name string) (string, bool) {
	reader, err := zip.NewReader(bytes.NewReader(docxBytes), int64(len(docxBytes)))
	if err != nil {
		return "", false
	}
	for _, file := range reader.File {
		if file.Name != name {
			continue
		}
		content, err := readZipFile(file)
		if err != nil {
			return "", false
		}
		return string(content), true
	}
	return "", false
}

// documentParagraphTexts parses rendered package bytes and returns the body
// paragraph texts in order, descending into tables row by row
func documentParagraphTexts(docxBytes []byte) []string {
	content, ok := extractPart(docxBytes, "word/document.xml")
	if !ok {
		return nil
	}
	doc, err := ParseDocument([]byte(content))
	if err != nil {
		return nil
	}
	return collectParagraphTexts(doc.Body.Elements)
}

func collectParagraphTexts(elems []BodyElement) []string {
	var texts []string
	for _, el := range elems {
		switch e := el.(type) {
		case *Paragraph:
			texts = append(texts, e.GetText())
		case *Table:
			for i := range e.Rows {
				for j := range e.Rows[i].Cells {
					texts = append(texts, collectParagraphTexts(e.Rows[i].Cells[j].Elements)...)
				}
			}
		}
	}
	return texts
}

// textParagraph builds a paragraph with one run per text fragment
func textParagraph(fragments ...string) *Paragraph {
	p := &Paragraph{}
	for _, fragment := range fragments {
		p.Children = append(p.Children, &Run{Text: &Text{Content: fragment}})
	}
	return p
}

// mustParseJSON parses JSON or panics; tests only
func mustParseJSON(input string) Value {
	v, err := ParseJSON(input)
	if err != nil {
		panic(err)
	}
	return v
}

// renderBodyElements runs the renderer over a child list with a fresh
// default-config renderer
func renderBodyElements(elems []BodyElement, jsonData string) ([]BodyElement, error) {
	root := mustParseJSON(jsonData)
	r := newRenderer(DefaultConfig(), newImageStore(nil))
	return r.renderElements(elems, NewRootContext(root), 0)
}

// paragraphTextsOf extracts paragraph texts from a rendered element list
func paragraphTextsOf(elems []BodyElement) []string {
	return collectParagraphTexts(elems)
}
