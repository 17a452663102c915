// Package result holds the per-link records produced by a liveness run, the
// thread-safe aggregator that partitions them, and the report writers.
package result

import (
	"fmt"
	"time"
)

// Outcome is the liveness verdict for a link.
type Outcome int

const (
	// OutcomeUnresolved is the zero value: the link has not been classified.
	OutcomeUnresolved Outcome = iota
	OutcomeAlive
	OutcomeDead
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAlive:
		return "alive"
	case OutcomeDead:
		return "dead"
	default:
		return "unresolved"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case "alive":
		*o = OutcomeAlive
	case "dead":
		*o = OutcomeDead
	case "unresolved", "":
		*o = OutcomeUnresolved
	default:
		return fmt.Errorf("unknown outcome %q", text)
	}
	return nil
}

// Reason names the classification rule that produced an Outcome.
type Reason string

const (
	ReasonFetchError    Reason = "fetch_error"     // fetch failed, fail-open
	ReasonGone          Reason = "gone"            // 404 or 410
	ReasonUnavailable   Reason = "unavailable"     // dead phrase in body
	ReasonBotDefense    Reason = "bot_defense"     // bot-defense signature in body
	ReasonForbidden     Reason = "forbidden"       // 403
	ReasonShortBody     Reason = "short_body"      // body too short to judge
	ReasonOK            Reason = "ok"              // 200
	ReasonRedirect      Reason = "redirect"        // 301 or 302
	ReasonDefault       Reason = "default"         // no rule matched
	ReasonLeftVideoPage Reason = "left_video_page" // render ended away from the video
	ReasonNoEmbed       Reason = "no_embed"        // oEmbed query rejected the video
	ReasonNotChecked    Reason = "not_checked"     // worker could not start
)

// LinkRecord is the per-link outcome of a run.
type LinkRecord struct {
	RawURL        string        `json:"raw_url"`
	CanonicalURL  string        `json:"canonical_url,omitempty"` // empty when resolution failed
	Outcome       Outcome       `json:"outcome"`
	Reason        Reason        `json:"reason"`
	StatusCode    int           `json:"status_code,omitempty"` // 0 if unreachable or rendered
	Error         string        `json:"error,omitempty"`
	ErrorCategory ErrorCategory `json:"error_type,omitempty"`
	ResolveError  string        `json:"resolve_error,omitempty"`
	Worker        int           `json:"worker"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// URL returns the identity reported in the alive and dead partitions: the
// canonical URL when resolution succeeded, otherwise the raw input.
func (r LinkRecord) URL() string {
	if r.CanonicalURL != "" {
		return r.CanonicalURL
	}
	return r.RawURL
}

// Partitions are the three output sequences of a run in append order.
type Partitions struct {
	Canonical []string
	Alive     []string
	Dead      []string
}

// Stats contains aggregate statistics for a run.
type Stats struct {
	Total       int           // Links in the input
	Canonical   int           // Links resolved to a canonical URL
	Alive       int           // Links classified alive
	Dead        int           // Links classified dead
	Unresolved  int           // Classified links whose resolution failed
	Unprocessed int           // Links owned by a worker that failed setup
	Duration    time.Duration // Wall time of the run
}

// Result represents the complete output of a run.
type Result struct {
	Partitions
	Records     []LinkRecord // Every classified link, in append order
	Unprocessed []string     // Links that were never classified
	Stats       Stats
}

// NewResult assembles a Result from a collector snapshot and computes Stats.
func NewResult(c *Collector, unprocessed []string, total int, elapsed time.Duration) *Result {
	res := &Result{
		Partitions:  c.Partitions(),
		Records:     c.Records(),
		Unprocessed: unprocessed,
	}
	res.Stats = Stats{
		Total:       total,
		Canonical:   len(res.Canonical),
		Alive:       len(res.Alive),
		Dead:        len(res.Dead),
		Unprocessed: len(unprocessed),
		Duration:    elapsed,
	}
	for _, rec := range res.Records {
		if rec.CanonicalURL == "" {
			res.Stats.Unresolved++
		}
	}
	return res
}

// GroupByReason returns the records with the given outcome keyed by reason.
func GroupByReason(records []LinkRecord, outcome Outcome) map[Reason][]LinkRecord {
	groups := make(map[Reason][]LinkRecord)
	for _, rec := range records {
		if rec.Outcome == outcome {
			groups[rec.Reason] = append(groups[rec.Reason], rec)
		}
	}
	return groups
}

// FormatReason returns a human-readable label for a reason.
func FormatReason(r Reason) string {
	switch r {
	case ReasonFetchError:
		return "Fetch failed"
	case ReasonGone:
		return "Gone (404/410)"
	case ReasonUnavailable:
		return "Unavailable notice"
	case ReasonBotDefense:
		return "Bot defense (assumed alive)"
	case ReasonForbidden:
		return "Forbidden (assumed alive)"
	case ReasonShortBody:
		return "Short body (assumed alive)"
	case ReasonOK:
		return "OK"
	case ReasonRedirect:
		return "Redirect"
	case ReasonLeftVideoPage:
		return "Left video page"
	case ReasonNoEmbed:
		return "No embed"
	case ReasonNotChecked:
		return "Not checked"
	default:
		return "No rule matched"
	}
}
