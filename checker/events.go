package checker

import "github.com/lukemcguire/vidcheck/result"

// CheckEvent reports progress for a single link or a failed worker.
type CheckEvent struct {
	URL           string // canonical URL if resolved, otherwise the raw input
	Worker        int
	Outcome       result.Outcome
	Reason        result.Reason
	StatusCode    int
	Error         string
	ErrorCategory result.ErrorCategory
	Checked       int // links classified so far
	Alive         int
	Dead          int
	Unprocessed   int // links skipped because their worker failed setup
	Total         int
}
