package result

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// WriteLines writes one URL per line, the format of the canonical, alive and
// dead output files.
func WriteLines(w io.Writer, urls []string) error {
	bw := bufio.NewWriter(w)
	for _, u := range urls {
		if _, err := bw.WriteString(u + "\n"); err != nil {
			return fmt.Errorf("write line for %s: %w", u, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush line output: %w", err)
	}
	return nil
}

// WriteJSON writes every record as a formatted JSON array to the writer.
func WriteJSON(w io.Writer, records []LinkRecord) error {
	if records == nil {
		records = []LinkRecord{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// csvHeader is shared by the CSV and XLSX reports.
var csvHeader = []string{"raw_url", "canonical_url", "outcome", "reason", "status_code", "error_type", "error", "worker", "resolve_error"}

// WriteCSV writes every record as CSV to the writer.
// Always includes a header row, even if there are no records.
func WriteCSV(w io.Writer, records []LinkRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(recordRow(rec)); err != nil {
			return fmt.Errorf("write csv record for %s: %w", rec.RawURL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

func recordRow(rec LinkRecord) []string {
	return []string{
		rec.RawURL,
		rec.CanonicalURL,
		rec.Outcome.String(),
		string(rec.Reason),
		statusCodeStr(rec.StatusCode),
		string(rec.ErrorCategory),
		rec.Error,
		strconv.Itoa(rec.Worker),
		rec.ResolveError,
	}
}

// statusCodeStr converts an HTTP status code to a string.
// Returns empty string for 0 (no HTTP status).
func statusCodeStr(code int) string {
	if code == 0 {
		return ""
	}
	return strconv.Itoa(code)
}
