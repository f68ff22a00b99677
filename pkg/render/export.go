package render

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/search"
)

// Document is the JSON export.
type Document struct {
	Query   query.Request   `json:"query"`
	NRes    int             `json:"nres"`
	Results []search.Record `json:"results"`
}

// ExportRequest adjusts req for an export: every result on one page, and
// no snippets for CSV.
func ExportRequest(req query.Request, format string) query.Request {
	req.Page = 0
	if format == "csv" {
		req.Snippets = 0
	}
	return req
}

// JSON writes the JSON export of page.
func JSON(w io.Writer, req query.Request, page *search.Page) error {
	results := page.Records
	if results == nil {
		results = []search.Record{}
	}
	enc := json.NewEncoder(w)
	if err := enc.Encode(Document{Query: req, NRes: page.Total, Results: results}); err != nil {
		return fmt.Errorf("encoding json export: %w", err)
	}
	return nil
}

// CSV writes a header of fields and one row per record with those fields
// in order. Rows end in CRLF; the final line break is omitted.
func CSV(w io.Writer, fields []string, page *search.Page) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	cw.UseCRLF = true
	if err := cw.Write(fields); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	row := make([]string, len(fields))
	for i := range page.Records {
		for j, f := range fields {
			row[j] = page.Records[i].Field(f)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\r\n"))
	return err
}

// Filename is the attachment name of an export of req.
func Filename(req query.Request, ext string) string {
	return "fedsearch-" + query.NormaliseFilename(query.Compile(req)) + "." + ext
}

// SetExportHeaders sets the content type and attachment disposition of an
// export response.
func SetExportHeaders(w http.ResponseWriter, req query.Request, ext, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+Filename(req, ext))
}
