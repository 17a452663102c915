package result

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func sampleRecords() []LinkRecord {
	return []LinkRecord{
		{
			RawURL:       "https://vm.tiktok.com/ZMa",
			CanonicalURL: "https://www.tiktok.com/@a/video/1",
			Outcome:      OutcomeDead,
			Reason:       ReasonGone,
			StatusCode:   404,
			Worker:       0,
		},
		{
			RawURL:        "https://vm.tiktok.com/ZMb",
			Outcome:       OutcomeAlive,
			Reason:        ReasonFetchError,
			Error:         "context deadline exceeded",
			ErrorCategory: CategoryTimeout,
			Worker:        1,
		},
	}
}

func TestWriteLines(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLines(&buf, []string{"https://a", "https://b"}); err != nil {
		t.Fatalf("WriteLines returned error: %v", err)
	}
	if got, want := buf.String(), "https://a\nhttps://b\n"; got != want {
		t.Errorf("WriteLines() = %q, want %q", got, want)
	}

	buf.Reset()
	if err := WriteLines(&buf, nil); err != nil {
		t.Fatalf("WriteLines(nil) returned error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("WriteLines(nil) wrote %q", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}

	var raw []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatalf("Output is not valid JSON: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(raw))
	}

	if raw[0]["outcome"] != "dead" {
		t.Errorf("outcome = %v, want \"dead\"", raw[0]["outcome"])
	}
	if raw[0]["canonical_url"] != "https://www.tiktok.com/@a/video/1" {
		t.Errorf("canonical_url = %v", raw[0]["canonical_url"])
	}
	if _, ok := raw[1]["canonical_url"]; ok {
		t.Error("unresolved record should omit canonical_url")
	}
	if raw[1]["error_type"] != "timeout" {
		t.Errorf("error_type = %v, want \"timeout\"", raw[1]["error_type"])
	}
}

func TestWriteJSON_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatalf("WriteJSON returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Errorf("Expected empty array, got %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRecords()); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("Output is not valid CSV: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("Expected 3 rows (header + 2), got %d", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(csvHeader, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][2] != "dead" || rows[1][4] != "404" {
		t.Errorf("first row = %v", rows[1])
	}
	if rows[2][4] != "" {
		t.Errorf("status for network error should be empty, got %q", rows[2][4])
	}
}

func TestWriteXLSX(t *testing.T) {
	res := &Result{
		Records:     sampleRecords(),
		Unprocessed: []string{"https://vm.tiktok.com/ZMc"},
		Stats:       Stats{Total: 3, Alive: 1, Dead: 1, Unprocessed: 1, Duration: 2 * time.Second},
	}

	var buf bytes.Buffer
	if err := WriteXLSX(&buf, res); err != nil {
		t.Fatalf("WriteXLSX returned error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(linksSheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", linksSheet, err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows (header + 2 + 1 unprocessed), got %d", len(rows))
	}
	if rows[3][0] != "https://vm.tiktok.com/ZMc" || rows[3][3] != string(ReasonNotChecked) {
		t.Errorf("unprocessed row = %v", rows[3])
	}

	total, err := f.GetCellValue(summarySheet, "B1")
	if err != nil {
		t.Fatalf("GetCellValue: %v", err)
	}
	if total != "3" {
		t.Errorf("summary total = %q, want \"3\"", total)
	}
}
