package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lukemcguire/vidcheck/probe"
	"github.com/lukemcguire/vidcheck/result"
	"github.com/lukemcguire/vidcheck/urlutil"
)

// fakeFetcher serves canned responses keyed by request URL.
type fakeFetcher struct {
	responses map[string]*probe.Response
	errs      map[string]error
	calls     atomic.Int32
	gate      chan struct{} // if set, Fetch blocks until it is closed
}

func (f *fakeFetcher) Fetch(_ context.Context, req probe.Request) (*probe.Response, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	if err, ok := f.errs[req.URL]; ok {
		return nil, err
	}
	if resp, ok := f.responses[req.URL]; ok {
		return resp, nil
	}
	return &probe.Response{StatusCode: 404, FinalURL: req.URL}, nil
}

type fakeRenderer struct {
	pages map[string]*probe.Page
}

func (f *fakeRenderer) Render(_ context.Context, url string, _ time.Duration) (*probe.Page, error) {
	if p, ok := f.pages[url]; ok {
		return p, nil
	}
	return nil, errors.New("render failed")
}

func TestResolve_CanonicalInputSkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	r := New(urlutil.TikTok, time.Second)

	got, err := r.Resolve(context.Background(), f, "https://www.tiktok.com/@a/video/1?is_from_webapp=1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "https://www.tiktok.com/@a/video/1" {
		t.Errorf("Resolve() = %q", got)
	}
	if f.calls.Load() != 0 {
		t.Errorf("expected no fetch for canonical input, got %d", f.calls.Load())
	}

	// idempotent
	again, err := r.Resolve(context.Background(), f, got)
	if err != nil || again != got {
		t.Errorf("Resolve(Resolve(x)) = %q, %v; want %q", again, err, got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		resp     *probe.Response
		fetchErr error
		want     string
		wantErr  error
		landing  string
	}{
		{
			name: "short link redirects to canonical",
			raw:  "https://vm.tiktok.com/ZMabc/",
			resp: &probe.Response{StatusCode: 200, FinalURL: "https://www.tiktok.com/@someone/video/7001?_r=1"},
			want: "https://www.tiktok.com/@someone/video/7001",
		},
		{
			name:    "placeholder account is a failure",
			raw:     "https://vm.tiktok.com/ZMabc/",
			resp:    &probe.Response{StatusCode: 200, FinalURL: "https://www.tiktok.com/@/video/7001"},
			wantErr: urlutil.ErrPlaceholderAccount,
			landing: "https://www.tiktok.com/@/video/7001",
		},
		{
			name:    "landing without video is a failure",
			raw:     "https://vm.tiktok.com/ZMabc/",
			resp:    &probe.Response{StatusCode: 200, FinalURL: "https://www.tiktok.com/foryou"},
			wantErr: ErrNotCanonical,
			landing: "https://www.tiktok.com/foryou",
		},
		{
			name:     "fetch error is a failure",
			raw:      "https://vm.tiktok.com/ZMabc/",
			fetchErr: &probe.FetchError{URL: "https://vm.tiktok.com/ZMabc", Category: result.CategoryTimeout, Err: context.DeadlineExceeded},
			wantErr:  context.DeadlineExceeded,
		},
		{
			name: "redirector body carries escaped canonical URL",
			raw:  "https://www.tiktokv.com/share/video/7002/",
			resp: &probe.Response{
				StatusCode: 200,
				FinalURL:   "https://www.tiktokv.com/share/video/7002",
				Body: `<script>{"related":"https:\/\/www.tiktok.com\/@other\/video\/9999",` +
					`"share":"https:\/\/www.tiktok.com\/@real\/video\/7002?lang=en"}</script>`,
			},
			want: "https://www.tiktok.com/@real/video/7002",
		},
		{
			name: "redirector body with only unrelated videos fails",
			raw:  "https://www.tiktokv.com/share/video/7002",
			resp: &probe.Response{
				StatusCode: 200,
				FinalURL:   "https://www.tiktokv.com/share/video/7002",
				Body:       `<a href="https://www.tiktok.com/@other/video/9999">more</a>`,
			},
			wantErr: ErrNotCanonical,
			landing: "https://www.tiktokv.com/share/video/7002",
		},
		{
			name: "canonical link element on landing page",
			raw:  "https://vm.tiktok.com/ZMdef",
			resp: &probe.Response{
				StatusCode: 200,
				FinalURL:   "https://m.tiktok.com/share/video/7003",
				Body:       `<html><head><link rel="canonical" href="https://www.tiktok.com/@c/video/7003"></head></html>`,
			},
			want: "https://www.tiktok.com/@c/video/7003",
		},
		{
			name: "landing without video id ignores canonical link element",
			raw:  "https://vm.tiktok.com/ZMdef",
			resp: &probe.Response{
				StatusCode: 200,
				FinalURL:   "https://m.tiktok.com/v/7003.html",
				Body:       `<html><head><link rel="canonical" href="https://www.tiktok.com/@c/video/7003"></head></html>`,
			},
			wantErr: ErrNotCanonical,
			landing: "https://m.tiktok.com/v/7003.html",
		},
		{
			name: "foryou landing ignores foreign og url",
			raw:  "https://vm.tiktok.com/ZMabc/",
			resp: &probe.Response{
				StatusCode: 200,
				FinalURL:   "https://www.tiktok.com/foryou",
				Body:       `<html><head><meta property="og:url" content="https://www.tiktok.com/@trending/video/555"></head></html>`,
			},
			wantErr: ErrNotCanonical,
			landing: "https://www.tiktok.com/foryou",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := urlutil.Normalize(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			f := &fakeFetcher{
				responses: map[string]*probe.Response{n: tt.resp},
				errs:      map[string]error{},
			}
			if tt.fetchErr != nil {
				f.errs[n] = tt.fetchErr
			}

			got, err := New(urlutil.TikTok, time.Second).Resolve(context.Background(), f, tt.raw)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Resolve() error = %v, want %v", err, tt.wantErr)
				}
				var re *ResolutionError
				if !errors.As(err, &re) {
					t.Fatalf("expected *ResolutionError, got %T", err)
				}
				if re.URL != tt.raw || re.Landing != tt.landing {
					t.Errorf("ResolutionError = %+v", re)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_InvalidInputSkipsFetch(t *testing.T) {
	f := &fakeFetcher{}
	_, err := New(urlutil.TikTok, time.Second).Resolve(context.Background(), f, "   ")
	if !errors.Is(err, urlutil.ErrEmptyURL) {
		t.Fatalf("Resolve() error = %v, want ErrEmptyURL", err)
	}
	if f.calls.Load() != 0 {
		t.Error("invalid input must not be fetched")
	}
}

func TestResolve_CollapsesConcurrentDuplicates(t *testing.T) {
	f := &fakeFetcher{
		responses: map[string]*probe.Response{
			"https://vm.tiktok.com/ZMdup": {StatusCode: 200, FinalURL: "https://www.tiktok.com/@d/video/5"},
		},
		gate: make(chan struct{}),
	}
	r := New(urlutil.TikTok, time.Second)

	const callers = 8
	results := make([]string, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Resolve(context.Background(), f, "https://vm.tiktok.com/ZMdup")
			if err != nil {
				t.Errorf("Resolve: %v", err)
			}
			results[i] = got
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i, got := range results {
		if got != "https://www.tiktok.com/@d/video/5" {
			t.Errorf("caller %d got %q", i, got)
		}
	}
}

// cancelFetcher blocks until its caller's context is done.
type cancelFetcher struct {
	started chan struct{}
}

func (f *cancelFetcher) Fetch(ctx context.Context, req probe.Request) (*probe.Response, error) {
	close(f.started)
	<-ctx.Done()
	return nil, &probe.FetchError{URL: req.URL, Category: result.CategoryUnknown, Attempts: 1, Err: ctx.Err()}
}

func TestResolve_SharedCancellationRetriesWithOwnContext(t *testing.T) {
	r := New(urlutil.TikTok, time.Second)
	const link = "https://vm.tiktok.com/ZMshared"

	leaderCtx, cancel := context.WithCancel(context.Background())
	leader := &cancelFetcher{started: make(chan struct{})}
	leaderErr := make(chan error, 1)
	go func() {
		_, err := r.Resolve(leaderCtx, leader, link)
		leaderErr <- err
	}()
	<-leader.started

	follower := &fakeFetcher{responses: map[string]*probe.Response{
		link: {StatusCode: 200, FinalURL: "https://www.tiktok.com/@s/video/6"},
	}}
	type outcome struct {
		url string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		got, err := r.Resolve(context.Background(), follower, link)
		done <- outcome{got, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	if err := <-leaderErr; !errors.Is(err, context.Canceled) {
		t.Errorf("leader error = %v, want context.Canceled", err)
	}
	got := <-done
	if got.err != nil {
		t.Fatalf("follower error = %v", got.err)
	}
	if got.url != "https://www.tiktok.com/@s/video/6" {
		t.Errorf("follower got %q", got.url)
	}
}

func TestResolveRendered(t *testing.T) {
	rd := &fakeRenderer{pages: map[string]*probe.Page{
		"https://vm.tiktok.com/ZMr": {FinalURL: "https://www.tiktok.com/@r/video/8", Text: "clip"},
	}}
	r := New(urlutil.TikTok, time.Second)

	got, err := r.ResolveRendered(context.Background(), rd, "https://vm.tiktok.com/ZMr")
	if err != nil {
		t.Fatalf("ResolveRendered: %v", err)
	}
	if got != "https://www.tiktok.com/@r/video/8" {
		t.Errorf("ResolveRendered() = %q", got)
	}

	if _, err := r.ResolveRendered(context.Background(), rd, "https://vm.tiktok.com/missing"); err == nil {
		t.Error("expected error for failed render")
	}
}

func TestExtractHints(t *testing.T) {
	body := `<html><head>
		<meta property="og:url" content="https://www.tiktok.com/@og/video/3">
		<link rel="alternate canonical" href="/@canon/video/2">
		<meta http-equiv="refresh" content="0;url=https://www.tiktok.com/@refresh/video/1">
		<a href="mailto:x@example.com">mail</a>
	</head></html>`

	got := ExtractHints(strings.NewReader(body), "https://www.tiktok.com/share")
	want := []string{
		"https://www.tiktok.com/@refresh/video/1",
		"https://www.tiktok.com/@canon/video/2",
		"https://www.tiktok.com/@og/video/3",
	}
	if len(got) != len(want) {
		t.Fatalf("ExtractHints() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("hint %d = %q, want %q", i, got[i], want[i])
		}
	}
}
