// Package liveness decides whether a canonical video URL still points at an
// available video. Classification is a pure function of an Observation and
// a Policy; the first matching rule wins.
package liveness

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/result"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// DefaultMinBodyLength is the body length below which a 2xx page is
// assumed to be a bot-served stub rather than a real removal notice.
const DefaultMinBodyLength = 500

// DefaultDeadPhrases are page texts that mean the video is gone.
var DefaultDeadPhrases = []string{
	"video unavailable",
	"video currently unavailable",
	"video is private",
	"video no longer available",
	"video is no longer available",
	"page not found",
}

// DefaultBotSignatures are page texts served by bot walls and CDN error
// pages. Their presence says nothing about the video.
var DefaultBotSignatures = []string{
	"access denied",
	"verify you're human",
	"verify you are human",
	"the request could not be satisfied",
	"cloudflare",
	"attention required",
	"please wait while we verify",
	"captcha",
	"restricted access",
}

// Observation is what a fetch or render of a canonical URL produced.
type Observation struct {
	Err        error  // non-nil if the fetch failed
	StatusCode int    // 0 for rendered pages
	FinalURL   string // landing URL after redirects
	Body       string
}

// FromResponse builds an Observation from a Fetcher result.
func FromResponse(resp *probe.Response, err error) Observation {
	if err != nil || resp == nil {
		return Observation{Err: err}
	}
	return Observation{StatusCode: resp.StatusCode, FinalURL: resp.FinalURL, Body: resp.Body}
}

// FromPage builds an Observation from a Renderer result.
func FromPage(page *probe.Page, err error) Observation {
	if err != nil || page == nil {
		return Observation{Err: err}
	}
	return Observation{FinalURL: page.FinalURL, Body: page.Text}
}

// Decision is a verdict with the rule that produced it.
type Decision struct {
	Outcome result.Outcome
	Reason  result.Reason
}

// Policy holds the tunable parts of classification.
type Policy struct {
	Platform      urlutil.Platform
	MinBodyLength int
	DeadPhrases   []string
	BotSignatures []string
	// OnFetchError is the verdict for a failed fetch. Alive (fail-open)
	// unless the operator prefers to fail closed.
	OnFetchError result.Outcome
}

// DefaultPolicy returns the fail-open TikTok policy.
func DefaultPolicy() Policy {
	return Policy{
		Platform:      urlutil.TikTok,
		MinBodyLength: DefaultMinBodyLength,
		DeadPhrases:   DefaultDeadPhrases,
		BotSignatures: DefaultBotSignatures,
		OnFetchError:  result.OutcomeAlive,
	}
}

// Classify applies the lightweight-fetch rules in order:
//  1. fetch error: OnFetchError (Alive by default)
//  2. 404 or 410: Dead
//  3. dead phrase in body: Dead
//  4. bot signature in body, or 403: Alive
//  5. body shorter than MinBodyLength: Alive
//  6. 200, 301 or 302: Alive
//  7. anything else: Alive
func (p Policy) Classify(obs Observation) Decision {
	if obs.Err != nil {
		return p.fetchErrorDecision()
	}

	switch obs.StatusCode {
	case http.StatusNotFound, http.StatusGone:
		return Decision{result.OutcomeDead, result.ReasonGone}
	}

	return p.classifyBody(obs)
}

// ClassifyRendered applies the render rules: a fetch error is handled as in
// Classify, then the page is Dead if the browser ended up away from a video
// page, then the body and status rules of Classify apply.
func (p Policy) ClassifyRendered(obs Observation) Decision {
	if obs.Err != nil {
		return p.fetchErrorDecision()
	}
	if !p.Platform.HasVideoSegment(obs.FinalURL) {
		return Decision{result.OutcomeDead, result.ReasonLeftVideoPage}
	}
	return p.Classify(obs)
}

// ClassifyOEmbed applies the oEmbed rules: a fetch error is handled as in
// Classify, a 200 answer is Alive, 400, 404 and 410 are Dead, 403 and 429
// are Alive as bot defense, and anything else is Alive.
func (p Policy) ClassifyOEmbed(obs Observation) Decision {
	if obs.Err != nil {
		return p.fetchErrorDecision()
	}
	switch obs.StatusCode {
	case http.StatusOK:
		return Decision{result.OutcomeAlive, result.ReasonOK}
	case http.StatusBadRequest, http.StatusNotFound, http.StatusGone:
		return Decision{result.OutcomeDead, result.ReasonNoEmbed}
	case http.StatusForbidden:
		return Decision{result.OutcomeAlive, result.ReasonForbidden}
	case http.StatusTooManyRequests:
		return Decision{result.OutcomeAlive, result.ReasonBotDefense}
	}
	return Decision{result.OutcomeAlive, result.ReasonDefault}
}

func (p Policy) fetchErrorDecision() Decision {
	outcome := p.OnFetchError
	if outcome != result.OutcomeDead {
		outcome = result.OutcomeAlive
	}
	return Decision{outcome, result.ReasonFetchError}
}

// classifyBody implements rules 3 to 7.
func (p Policy) classifyBody(obs Observation) Decision {
	body := strings.ToLower(obs.Body)

	if containsAny(body, p.DeadPhrases) {
		return Decision{result.OutcomeDead, result.ReasonUnavailable}
	}
	if containsAny(body, p.BotSignatures) {
		return Decision{result.OutcomeAlive, result.ReasonBotDefense}
	}
	if obs.StatusCode == http.StatusForbidden {
		return Decision{result.OutcomeAlive, result.ReasonForbidden}
	}
	if utf8.RuneCountInString(body) < p.MinBodyLength {
		return Decision{result.OutcomeAlive, result.ReasonShortBody}
	}

	switch obs.StatusCode {
	case http.StatusOK:
		return Decision{result.OutcomeAlive, result.ReasonOK}
	case http.StatusMovedPermanently, http.StatusFound:
		return Decision{result.OutcomeAlive, result.ReasonRedirect}
	}
	return Decision{result.OutcomeAlive, result.ReasonDefault}
}

func containsAny(lowered string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(lowered, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
