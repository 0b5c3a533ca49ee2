package docxmerge

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const imageRelationshipType = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"

// DocxReader handles reading and parsing DOCX packages
type DocxReader struct {
	reader *zip.Reader
	Parts  map[string]*zip.File
}

// Relationship represents a relationship in the DOCX package
type Relationship struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr,omitempty"`
}

// Relationships represents the collection of relationships for a part
type Relationships struct {
	XMLName      xml.Name       `xml:"Relationships"`
	Namespace    string         `xml:"xmlns,attr"`
	Relationship []Relationship `xml:"Relationship"`
}

// NewDocxReader creates a new DOCX reader
func NewDocxReader(r io.ReaderAt, size int64) (*DocxReader, error) {
	zipReader, err := zip.NewReader(r, size)
	if err != nil {
		return nil, NewDocumentError("open", "", fmt.Errorf("failed to read zip file: %w", err))
	}

	dr := &DocxReader{
		reader: zipReader,
		Parts:  make(map[string]*zip.File),
	}

	for _, file := range zipReader.File {
		dr.Parts[file.Name] = file
	}

	if _, ok := dr.Parts["word/document.xml"]; !ok {
		return nil, NewDocumentError("open", "word/document.xml", fmt.Errorf("not a valid DOCX file: missing main document part"))
	}

	return dr, nil
}

// GetPart retrieves the content of a specific part
func (dr *DocxReader) GetPart(partName string) ([]byte, error) {
	file, ok := dr.Parts[partName]
	if !ok {
		return nil, NewDocumentError("extract", partName, fmt.Errorf("part not found"))
	}

	rc, err := file.Open()
	if err != nil {
		return nil, NewDocumentError("extract", partName, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewDocumentError("extract", partName, err)
	}

	return content, nil
}

// GetDocumentXML retrieves the content of word/document.xml
func (dr *DocxReader) GetDocumentXML() ([]byte, error) {
	return dr.GetPart("word/document.xml")
}

// GetDocumentRelationships parses word/_rels/document.xml.rels. A missing
// relationships part is not an error.
func (dr *DocxReader) GetDocumentRelationships() ([]Relationship, error) {
	content, err := dr.GetPart("word/_rels/document.xml.rels")
	if err != nil {
		return []Relationship{}, nil
	}

	var rels Relationships
	if err := xml.Unmarshal(content, &rels); err != nil {
		return nil, NewDocumentError("parse", "word/_rels/document.xml.rels", err)
	}
	return rels.Relationship, nil
}

// nextRelationshipID generates the next available relationship ID
func nextRelationshipID(rels []Relationship) int {
	maxID := 0
	for _, rel := range rels {
		if strings.HasPrefix(rel.ID, "rId") {
			if id, err := strconv.Atoi(rel.ID[3:]); err == nil && id > maxID {
				maxID = id
			}
		}
	}
	return maxID + 1
}

// writeDocx assembles the output package: every part of the source is copied
// verbatim except the main document part, the document relationships and the
// content types, which absorb the rendered XML and any new image parts.
func writeDocx(source []byte, documentXML []byte, images []imagePart) ([]byte, error) {
	srcReader, err := zip.NewReader(bytes.NewReader(source), int64(len(source)))
	if err != nil {
		return nil, NewDocumentError("open", "", err)
	}

	buf := new(bytes.Buffer)
	w := zip.NewWriter(buf)

	relsSeen := false
	for _, file := range srcReader.File {
		switch {
		case file.Name == "word/document.xml":
			if err := writeZipEntry(w, file.Name, documentXML); err != nil {
				return nil, err
			}
		case file.Name == "word/_rels/document.xml.rels" && len(images) > 0:
			relsSeen = true
			content, err := readZipFile(file)
			if err != nil {
				return nil, err
			}
			updated, err := appendImageRelationships(content, images)
			if err != nil {
				return nil, err
			}
			if err := writeZipEntry(w, file.Name, updated); err != nil {
				return nil, err
			}
		case file.Name == "[Content_Types].xml" && len(images) > 0:
			content, err := readZipFile(file)
			if err != nil {
				return nil, err
			}
			if err := writeZipEntry(w, file.Name, ensureImageContentTypes(content, images)); err != nil {
				return nil, err
			}
		default:
			content, err := readZipFile(file)
			if err != nil {
				return nil, err
			}
			if err := writeZipEntry(w, file.Name, content); err != nil {
				return nil, err
			}
		}
	}

	if len(images) > 0 && !relsSeen {
		rels, err := appendImageRelationships(nil, images)
		if err != nil {
			return nil, err
		}
		if err := writeZipEntry(w, "word/_rels/document.xml.rels", rels); err != nil {
			return nil, err
		}
	}

	for _, img := range images {
		if err := writeZipEntry(w, img.PartName, img.Data); err != nil {
			return nil, err
		}
	}

	if err := w.Close(); err != nil {
		return nil, NewDocumentError("save", "", err)
	}

	return buf.Bytes(), nil
}

func readZipFile(file *zip.File) ([]byte, error) {
	rc, err := file.Open()
	if err != nil {
		return nil, NewDocumentError("extract", file.Name, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(rc)
	if err != nil {
		return nil, NewDocumentError("extract", file.Name, err)
	}
	return content, nil
}

func writeZipEntry(w *zip.Writer, name string, content []byte) error {
	fw, err := w.Create(name)
	if err != nil {
		return NewDocumentError("save", name, err)
	}
	if _, err := fw.Write(content); err != nil {
		return NewDocumentError("save", name, err)
	}
	return nil
}

// appendImageRelationships adds one image relationship per new part. A nil
// input produces a relationships document from scratch.
func appendImageRelationships(content []byte, images []imagePart) ([]byte, error) {
	rels := Relationships{
		Namespace: "http://schemas.openxmlformats.org/package/2006/relationships",
	}
	if content != nil {
		if err := xml.Unmarshal(content, &rels); err != nil {
			return nil, NewDocumentError("parse", "word/_rels/document.xml.rels", err)
		}
	}

	for _, img := range images {
		rels.Relationship = append(rels.Relationship, Relationship{
			ID:     img.RelID,
			Type:   imageRelationshipType,
			Target: strings.TrimPrefix(img.PartName, "word/"),
		})
	}

	output, err := xml.Marshal(&rels)
	if err != nil {
		return nil, NewDocumentError("save", "word/_rels/document.xml.rels", err)
	}

	// Word requires the standalone declaration
	header := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
	return append([]byte(header), output...), nil
}

// ensureImageContentTypes registers a Default content type for every image
// extension the output now carries
func ensureImageContentTypes(content []byte, images []imagePart) []byte {
	text := string(content)
	for _, img := range images {
		ext := img.Format.Extension()
		if strings.Contains(text, `Extension="`+ext+`"`) {
			continue
		}
		entry := `<Default Extension="` + ext + `" ContentType="` + img.Format.ContentType() + `"/>`
		idx := strings.LastIndex(text, "</Types>")
		if idx < 0 {
			continue
		}
		text = text[:idx] + entry + text[idx:]
	}
	return []byte(text)
}
