// Package ingestsource normalizes Markdown and PDF input files into
// model.Document values ready for ingest.Service.Process. Grounded on the
// teacher's rag/reader package: the Reader interface (LoadData) and the
// fluent With* option pattern of MarkdownReader/PDFReader, adapted from
// returning []schema.Node to returning a single model.Document per file,
// since spec.md's Document is always a whole work, never one node per page.
package ingestsource

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/stratarag/stratarag/model"
	"github.com/stratarag/stratarag/ragerr"
)

// Reader loads one source file into a model.Document, grounded on the
// teacher's reader.Reader/reader.FileReader split (here collapsed into one
// method, since every concrete reader in this package reads exactly one
// file per call).
type Reader interface {
	LoadFromFile(path string) (model.Document, error)
}

// MarkdownReader reads a single Markdown file. RemoveHyperlinks/RemoveImages
// mirror the teacher's MarkdownReader knobs of the same name.
type MarkdownReader struct {
	RemoveHyperlinks bool
	RemoveImages     bool
}

var linkPattern = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
var imagePattern = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
var headingPattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func (r MarkdownReader) LoadFromFile(path string) (model.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Document{}, ragerr.New(ragerr.InvalidInput, "MarkdownReader.LoadFromFile", err)
	}
	text := string(raw)

	if r.RemoveImages {
		text = imagePattern.ReplaceAllString(text, "$1")
	}
	if r.RemoveHyperlinks {
		text = linkPattern.ReplaceAllString(text, "$1")
	}

	return model.Document{
		Title:   titleFromMarkdown(text, path),
		RawText: text,
		Metadata: map[string]any{
			"file_path": path,
			"file_name": filepath.Base(path),
			"file_type": "markdown",
		},
	}, nil
}

// titleFromMarkdown takes the first top-level heading as the title, falling
// back to the file's base name without extension.
func titleFromMarkdown(text, path string) string {
	if m := headingPattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PDFReader reads a single PDF file, concatenating every page's plain text
// into one document, grounded on the teacher's PDFReader.loadEntireDocument
// (the SplitByPage variant has no analogue here: spec.md's Document is one
// whole work, chaptering is splitter.Splitter's job, not the reader's).
type PDFReader struct{}

func (PDFReader) LoadFromFile(path string) (model.Document, error) {
	f, pdfReader, err := pdf.Open(path)
	if err != nil {
		return model.Document{}, ragerr.New(ragerr.InvalidInput, "PDFReader.LoadFromFile", err)
	}
	defer f.Close()

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return model.Document{}, ragerr.New(ragerr.InvalidInput, "PDFReader.LoadFromFile", fmt.Errorf("PDF has no pages"))
	}

	var text strings.Builder
	for pageNum := 1; pageNum <= numPages; pageNum++ {
		page := pdfReader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n")
	}

	if strings.TrimSpace(text.String()) == "" {
		return model.Document{}, ragerr.New(ragerr.InvalidInput, "PDFReader.LoadFromFile", fmt.Errorf("no text content found in PDF"))
	}

	base := filepath.Base(path)
	return model.Document{
		Title:   strings.TrimSuffix(base, filepath.Ext(base)),
		RawText: text.String(),
		Metadata: map[string]any{
			"file_path":   path,
			"file_name":   base,
			"file_type":   "pdf",
			"total_pages": numPages,
		},
	}, nil
}

// ForExtension picks the Reader registered for a file extension (case
// insensitive, leading dot optional), or nil if none is registered.
func ForExtension(ext string) Reader {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return MarkdownReader{}
	case "pdf":
		return PDFReader{}
	default:
		return nil
	}
}

// Load picks a Reader by path's extension and loads it.
func Load(path string) (model.Document, error) {
	r := ForExtension(filepath.Ext(path))
	if r == nil {
		return model.Document{}, ragerr.New(ragerr.InvalidInput, "ingestsource.Load", fmt.Errorf("unsupported file extension %q", filepath.Ext(path)))
	}
	return r.LoadFromFile(path)
}
