// Package extractor turns raw PDF bytes into page-level text and table
// structures.
//
// Extraction is layered: the text layer of each page is read first, and
// a positional pass over the same page recovers row/column tables for
// the column-oriented statement layouts. If per-page extraction yields
// nothing, a whole-document plain text pass is attempted as a fallback.
// An empty result is not an error here; the caller records the document
// as unreadable and the batch continues.
package extractor

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"document-reconciliation-service/internal/models"
	"document-reconciliation-service/pkg/logger"

	"github.com/dslipak/pdf"
)

// DefaultPageCap bounds how many pages are extracted per document.
// Statements beyond this size are almost always scanned archives.
const DefaultPageCap = 50

// cellGap is the horizontal gap (in text-space units) that separates
// two runs of text into distinct table cells.
const cellGap = 12.0

// Extractor extracts text and tables from PDF documents
type Extractor struct {
	pageCap int
	logger  logger.Logger
}

// New creates an Extractor with the given page cap
func New(pageCap int, log logger.Logger) *Extractor {
	if pageCap <= 0 {
		pageCap = DefaultPageCap
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Extractor{
		pageCap: pageCap,
		logger:  log.WithComponent("extractor"),
	}
}

// Extract returns the ordered pages of the document, possibly empty.
// A nil error with zero pages means the document had no extractable
// text layer; hard failures (corrupt xref tables and the like) are
// returned as errors. Both are per-document outcomes for the caller.
func (e *Extractor) Extract(data []byte) (pages []models.ExtractedPage, err error) {
	// The underlying reader panics on some malformed cross-reference
	// tables; convert that into a per-document error.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	if total > e.pageCap {
		e.logger.WithFields(logger.Fields{"pages": total, "cap": e.pageCap}).
			Warn("document exceeds page cap, truncating")
		total = e.pageCap
	}

	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		extracted := models.ExtractedPage{Number: i}

		if text, terr := page.GetPlainText(nil); terr == nil {
			extracted.Text = text
		}
		if table, ok := e.extractTable(page); ok {
			extracted.Tables = append(extracted.Tables, table)
		}

		if !extracted.IsEmpty() {
			pages = append(pages, extracted)
		}
	}

	if len(pages) == 0 {
		// Secondary strategy: some documents expose no per-page
		// content streams but still decode as a whole.
		if text := wholeDocumentText(reader); strings.TrimSpace(text) != "" {
			pages = append(pages, models.ExtractedPage{Number: 1, Text: text})
		}
	}

	e.logger.WithField("pages", len(pages)).Debug("extraction complete")
	return pages, nil
}

// extractTable rebuilds a row/column table from the positioned text
// runs of a page. Runs on one baseline form a row; a horizontal gap
// wider than cellGap starts a new cell.
func (e *Extractor) extractTable(page pdf.Page) (models.Table, bool) {
	rows, err := page.GetTextByRow()
	if err != nil || len(rows) == 0 {
		return models.Table{}, false
	}

	var table models.Table
	for _, row := range rows {
		cells := splitIntoCells(row.Content)
		if len(cells) > 0 {
			table.Rows = append(table.Rows, cells)
		}
	}
	return table, len(table.Rows) > 0
}

func splitIntoCells(texts []pdf.Text) []string {
	if len(texts) == 0 {
		return nil
	}
	sort.Slice(texts, func(i, j int) bool { return texts[i].X < texts[j].X })

	var cells []string
	var current strings.Builder
	prevEnd := texts[0].X

	for i, t := range texts {
		if i > 0 && t.X-prevEnd > cellGap {
			if cell := strings.TrimSpace(current.String()); cell != "" {
				cells = append(cells, cell)
			}
			current.Reset()
		}
		current.WriteString(t.S)
		prevEnd = t.X + t.W
	}
	if cell := strings.TrimSpace(current.String()); cell != "" {
		cells = append(cells, cell)
	}
	return cells
}

func wholeDocumentText(reader *pdf.Reader) string {
	body, err := reader.GetPlainText()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(body); err != nil {
		return ""
	}
	return buf.String()
}
