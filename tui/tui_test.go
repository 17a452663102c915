package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/vidcheck/checker"
	"github.com/lukemcguire/vidcheck/pool"
	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/result"
)

type stubHandle struct{}

func (stubHandle) Fetch(_ context.Context, req probe.Request) (*probe.Response, error) {
	return &probe.Response{StatusCode: 404, FinalURL: req.URL}, nil
}

func (stubHandle) Render(context.Context, string, time.Duration) (*probe.Page, error) {
	return nil, errors.New("not used")
}

func (stubHandle) Close() error { return nil }

func newTestChecker(t *testing.T, progressCh chan checker.CheckEvent) *checker.Checker {
	t.Helper()
	cfg := checker.DefaultConfig()
	cfg.Workers = 1
	factory := func(context.Context, int) (pool.Handle, error) { return stubHandle{}, nil }
	c, err := checker.New(cfg, factory, progressCh)
	if err != nil {
		t.Fatalf("checker.New() error: %v", err)
	}
	return c
}

func deadResult() *result.Result {
	c := result.NewCollector()
	_ = c.Append(result.LinkRecord{
		RawURL:       "https://vm.tiktok.com/A",
		CanonicalURL: "https://www.tiktok.com/@a/video/1",
		Outcome:      result.OutcomeDead,
		Reason:       result.ReasonGone,
		StatusCode:   404,
	})
	_ = c.Append(result.LinkRecord{
		RawURL:  "https://www.tiktok.com/@b/video/2",
		Outcome: result.OutcomeDead,
		Reason:  result.ReasonLeftVideoPage,
	})
	_ = c.Append(result.LinkRecord{
		RawURL:  "https://www.tiktok.com/@c/video/3",
		Outcome: result.OutcomeAlive,
		Reason:  result.ReasonOK,
	})
	return result.NewResult(c, nil, 3, 3*time.Second)
}

func TestNewModel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan checker.CheckEvent, 10)
	c := newTestChecker(t, progressCh)
	links := []string{"https://vm.tiktok.com/A", "https://vm.tiktok.com/B"}

	model := NewModel(ctx, cancel, c, links, progressCh)

	if model.ctx != ctx {
		t.Error("expected ctx to be stored in model")
	}
	if model.checker != c {
		t.Error("expected checker to be stored in model")
	}
	if model.total != 2 {
		t.Errorf("expected total=2, got %d", model.total)
	}
	if model.checked != 0 || model.dead != 0 || model.done {
		t.Error("expected a fresh model")
	}
	if model.Init() == nil {
		t.Error("Init() should return a non-nil batch command")
	}
}

func TestStartCheckRunsAndClosesChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	progressCh := make(chan checker.CheckEvent, 10)
	links := []string{"https://www.tiktok.com/@a/video/1"}
	model := NewModel(ctx, cancel, newTestChecker(t, progressCh), links, progressCh)

	msg := model.startCheck()()
	done, ok := msg.(CheckDoneMsg)
	if !ok {
		t.Fatalf("startCheck() returned %T, want CheckDoneMsg", msg)
	}
	if done.Err != nil || done.Result == nil || len(done.Result.Dead) != 1 {
		t.Fatalf("unexpected done message: %+v", done)
	}

	<-progressCh // the one link event
	if _, open := <-progressCh; open {
		t.Error("progress channel should be closed after the run")
	}
	if got := waitForProgress(progressCh)(); got != nil {
		t.Errorf("waitForProgress on a closed channel = %v, want nil", got)
	}
}

func TestHasDeadLinks(t *testing.T) {
	tests := []struct {
		name   string
		result *result.Result
		want   bool
	}{
		{"nil result", nil, false},
		{"no dead links", &result.Result{}, false},
		{"has dead links", deadResult(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := Model{result: tt.result}
			if got := model.HasDeadLinks(); got != tt.want {
				t.Errorf("HasDeadLinks() = %v, want %v", got, tt.want)
			}
			if model.GetResult() != tt.result {
				t.Error("GetResult() did not return the stored result")
			}
		})
	}
}

func TestRenderSummary_NilResult(t *testing.T) {
	if RenderSummary(nil) == "" {
		t.Error("expected non-empty output for nil result")
	}
}

func TestRenderSummary_NoDeadLinks(t *testing.T) {
	res := &result.Result{Stats: result.Stats{Total: 10, Alive: 10, Duration: 2 * time.Second}}
	output := RenderSummary(res)
	if !strings.Contains(output, "No dead links found") {
		t.Errorf("expected success message, got: %s", output)
	}
	if !strings.Contains(output, "10 alive") {
		t.Errorf("expected alive count, got: %s", output)
	}
}

func TestRenderSummary_WithDeadLinks(t *testing.T) {
	output := RenderSummary(deadResult())

	for _, want := range []string{
		"www.tiktok.com/@a/video/1",
		"404",
		"vm.tiktok.com/A",
		"www.tiktok.com/@b/video/2",
		"2 dead",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
	if strings.Index(output, result.FormatReason(result.ReasonGone)) > strings.Index(output, result.FormatReason(result.ReasonLeftVideoPage)) {
		t.Error("gone links should be listed before left-video-page links")
	}
}

func TestRenderSummary_Unprocessed(t *testing.T) {
	res := &result.Result{Unprocessed: []string{"a", "b"}}
	if !strings.Contains(RenderSummary(res), "2 links were not checked") {
		t.Error("expected unprocessed warning")
	}
}

func TestUpdate_CheckProgressMsg(t *testing.T) {
	model := Model{progressCh: make(chan checker.CheckEvent, 10)}

	msg := CheckProgressMsg{Checked: 5, Alive: 4, Dead: 1, Total: 9, URL: "https://vm.tiktok.com/X"}
	updatedModel, cmd := model.Update(msg)
	updated := updatedModel.(Model)

	if updated.checked != 5 || updated.alive != 4 || updated.dead != 1 || updated.total != 9 {
		t.Errorf("counters not updated: %+v", updated)
	}
	if updated.current != "https://vm.tiktok.com/X" {
		t.Errorf("expected current URL to be set, got %s", updated.current)
	}
	if cmd == nil {
		t.Error("expected non-nil cmd to re-subscribe to progress channel")
	}
}

func TestUpdate_CheckDoneMsg(t *testing.T) {
	res := deadResult()
	updatedModel, cmd := Model{}.Update(CheckDoneMsg{Result: res})
	updated := updatedModel.(Model)

	if !updated.done || updated.result != res {
		t.Error("expected done with result stored")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestUpdate_QuitKeyCancelsFirst(t *testing.T) {
	canceled := false
	model := Model{cancel: func() { canceled = true }}

	updatedModel, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	updated := updatedModel.(Model)
	if !canceled || !updated.stopping {
		t.Error("first q should cancel the run")
	}
	if cmd != nil {
		t.Error("first q should wait for the run to wind down")
	}

	_, cmd = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("second q should quit")
	}
}

func TestUpdate_SpinnerTickMsg(t *testing.T) {
	updatedModel, _ := Model{}.Update(spinner.TickMsg{})
	_ = updatedModel.(Model)
}

func TestUpdate_WindowSizeMsg(t *testing.T) {
	updatedModel, _ := Model{}.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if updated := updatedModel.(Model); updated.width != 120 {
		t.Errorf("expected width=120, got %d", updated.width)
	}
}

func TestView_InProgress(t *testing.T) {
	model := Model{bar: progress.New(), checked: 3, alive: 2, dead: 1, total: 10, current: "https://vm.tiktok.com/X"}
	output := model.View()
	if !strings.Contains(output, "Checking") || !strings.Contains(output, "3/10") {
		t.Errorf("unexpected progress view: %s", output)
	}
}

func TestView_DoneWithDegradedResult(t *testing.T) {
	model := Model{done: true, result: deadResult(), err: checker.ErrDegraded}
	output := model.View()
	if !strings.Contains(output, "Warning") {
		t.Errorf("expected warning in done view, got: %s", output)
	}
}

func TestView_DoneWithError(t *testing.T) {
	model := Model{done: true, err: context.Canceled}
	if output := model.View(); !strings.Contains(output, "Error") {
		t.Errorf("expected error message in done view, got: %s", output)
	}
}
