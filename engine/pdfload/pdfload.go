// Package pdfload extracts per-page text and document metadata from a PDF.
package pdfload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/WessleyAI/pdfqa/engine/domain"
)

// Metadata keys set on every page.
const (
	KeySource     = "source"
	KeyPage       = "page"
	KeyTotalPages = "total_pages"
	KeyPageLabel  = "page_label"
)

// infoFields maps PDF Info dictionary entries onto metadata keys.
var infoFields = []struct{ pdfKey, metaKey string }{
	{"Title", "title"},
	{"Author", "author"},
	{"Subject", "subject"},
	{"Keywords", "keywords"},
	{"Creator", "creator"},
	{"Producer", "producer"},
	{"CreationDate", "creationdate"},
	{"ModDate", "moddate"},
}

// Loader reads PDF files from the local filesystem.
type Loader struct {
	logger *slog.Logger
}

// New creates a Loader.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// Load returns one Page per PDF page, in order. Page numbers in metadata are
// zero-based. Pages whose text cannot be extracted are returned empty and
// logged; the chunker skips them.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Page, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pdfload: open %s: %w", path, err)
	}
	defer f.Close()

	info := readInfo(r)
	total := r.NumPage()
	pages := make([]domain.Page, 0, total)
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := pageText(r.Page(i))
		if err != nil {
			l.logger.Warn("pdfload: page text", "path", path, "page", i-1, "error", err)
		}
		pages = append(pages, domain.Page{
			Text:     text,
			Metadata: PageMetadata(path, i-1, total, info),
		})
	}
	l.logger.Debug("pdfload: loaded", "path", path, "pages", len(pages))
	return pages, nil
}

// PageMetadata builds the metadata for page index (zero-based) of total.
// Info values are copied as-is, including empty ones.
func PageMetadata(source string, index, total int, info map[string]string) domain.Metadata {
	md := domain.Metadata{
		KeySource:     filepath.ToSlash(source),
		KeyPage:       index,
		KeyTotalPages: total,
		KeyPageLabel:  strconv.Itoa(index + 1),
	}
	for _, f := range infoFields {
		md[f.metaKey] = info[f.metaKey]
	}
	return md
}

func readInfo(r *pdf.Reader) map[string]string {
	out := make(map[string]string, len(infoFields))
	dict := r.Trailer().Key("Info")
	if dict.IsNull() {
		return out
	}
	for _, f := range infoFields {
		out[f.metaKey] = strings.TrimSpace(dict.Key(f.pdfKey).Text())
	}
	return out
}

// pageText extracts plain text. The parser panics on some malformed content
// streams, so a panic is turned into an error for that page only.
func pageText(p pdf.Page) (text string, err error) {
	if p.V.IsNull() {
		return "", nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			text, err = "", fmt.Errorf("pdfload: malformed page: %v", rec)
		}
	}()
	return p.GetPlainText(nil)
}
