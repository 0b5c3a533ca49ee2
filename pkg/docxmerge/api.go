package docxmerge

import (
	"bytes"
	"fmt"
	"io"
	"os"
)

// Engine provides the main API for rendering templates. Engines hold no
// per-render state, so distinct instances may render concurrently.
type Engine struct {
	config *Config
}

// New creates a new engine with the global configuration
func New() *Engine {
	return &Engine{config: GetGlobalConfig()}
}

// NewWithConfig creates a new engine with a custom configuration
func NewWithConfig(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config}
}

// Config returns the engine's configuration
func (e *Engine) Config() *Config {
	return e.config
}

// Render merges a DOCX template with a JSON document and returns the
// rendered package bytes.
func (e *Engine) Render(templateBytes []byte, jsonData string) ([]byte, error) {
	if len(templateBytes) == 0 {
		return nil, fmt.Errorf("template bytes must not be empty")
	}
	if jsonData == "" {
		return nil, fmt.Errorf("JSON data must not be empty")
	}

	root, err := ParseJSON(jsonData)
	if err != nil {
		return nil, err
	}
	if root.IsNull() {
		return nil, NewJSONError(fmt.Errorf("JSON root must not be null"))
	}

	reader, err := NewDocxReader(bytes.NewReader(templateBytes), int64(len(templateBytes)))
	if err != nil {
		return nil, err
	}

	docXML, err := reader.GetDocumentXML()
	if err != nil {
		return nil, err
	}

	doc, err := ParseDocument(docXML)
	if err != nil {
		return nil, err
	}

	rels, err := reader.GetDocumentRelationships()
	if err != nil {
		return nil, err
	}

	store := newImageStore(rels)
	rend := newRenderer(e.config, store)

	if err := rend.RenderBody(doc.Body, NewRootContext(root)); err != nil {
		return nil, err
	}

	return writeDocx(templateBytes, doc.Marshal(), store.parts)
}

// RenderStream merges a template read from a stream and writes the rendered
// package to a seekable output, leaving the output position at the start.
func (e *Engine) RenderStream(template io.Reader, jsonData string, output io.WriteSeeker) error {
	if template == nil {
		return fmt.Errorf("template stream must not be nil")
	}
	if output == nil {
		return fmt.Errorf("output stream must not be nil")
	}

	templateBytes, err := io.ReadAll(template)
	if err != nil {
		return NewDocumentError("read", "", err)
	}

	rendered, err := e.Render(templateBytes, jsonData)
	if err != nil {
		return err
	}

	if _, err := output.Write(rendered); err != nil {
		return NewDocumentError("save", "", err)
	}
	if _, err := output.Seek(0, io.SeekStart); err != nil {
		return NewDocumentError("save", "", err)
	}
	return nil
}

// RenderFile renders a template file to an output file
func (e *Engine) RenderFile(templatePath, jsonData, outputPath string) error {
	templateBytes, err := os.ReadFile(templatePath)
	if err != nil {
		return NewDocumentError("read", templatePath, err)
	}

	rendered, err := e.Render(templateBytes, jsonData)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, rendered, 0o644); err != nil {
		return NewDocumentError("save", outputPath, err)
	}
	return nil
}

// Render merges a template with JSON data using a default engine
func Render(templateBytes []byte, jsonData string) ([]byte, error) {
	return New().Render(templateBytes, jsonData)
}
