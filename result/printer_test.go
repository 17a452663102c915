package result

import (
	"bytes"
	"strings"
	"testing"
)

func TestPrintResults_NoDeadLinks(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{
		Records: []LinkRecord{{RawURL: "r", CanonicalURL: "c", Outcome: OutcomeAlive, Reason: ReasonOK}},
		Stats:   Stats{Total: 1, Alive: 1, Canonical: 1},
	}

	PrintResults(&buf, r)

	want := "No dead links found!\nChecked 1 links: 1 alive, 0 dead, 1 canonical, 0 unresolved\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrintResults_WithDeadLinks(t *testing.T) {
	var buf bytes.Buffer
	r := &Result{
		Records: []LinkRecord{
			{RawURL: "https://vm.tiktok.com/a", CanonicalURL: "https://www.tiktok.com/@a/video/1", Outcome: OutcomeDead, Reason: ReasonGone, StatusCode: 404},
			{RawURL: "https://www.tiktok.com/@b/video/2", CanonicalURL: "https://www.tiktok.com/@b/video/2", Outcome: OutcomeDead, Reason: ReasonUnavailable, StatusCode: 200},
			{RawURL: "https://vm.tiktok.com/c", Outcome: OutcomeAlive, Reason: ReasonFetchError},
		},
		Unprocessed: []string{"https://vm.tiktok.com/d"},
		Stats:       Stats{Total: 4, Alive: 1, Dead: 2, Canonical: 2, Unresolved: 1, Unprocessed: 1},
	}

	PrintResults(&buf, r)
	got := buf.String()

	for _, want := range []string{
		"Dead Links:",
		"Gone (404/410) (1)",
		"https://www.tiktok.com/@a/video/1 [404]",
		"Unavailable notice (1)",
		"Not checked (worker setup failed): 1 links",
		"Checked 3 links: 1 alive, 2 dead, 2 canonical, 1 unresolved",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "https://vm.tiktok.com/c") {
		t.Error("alive link should not be listed")
	}
	// reasons are printed in sorted order
	if strings.Index(got, "Gone") > strings.Index(got, "Unavailable") {
		t.Error("expected reasons in sorted order")
	}
}
