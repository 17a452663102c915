package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

func TestSessionRender_FollowsMetaRefresh(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/share/video/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><meta http-equiv="Refresh" content="0; URL='/@a/video/1'"></head></html>`)
	})
	mux.HandleFunc("/@a/video/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Clip</title><script>var hidden = "captcha";</script></head>
			<body><div>Video   currently
			unavailable</div></body></html>`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	s := newTestSession(t, DefaultSessionConfig())
	page, err := s.Render(context.Background(), server.URL+"/share/video/1", time.Second)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	if want := server.URL + "/@a/video/1"; page.FinalURL != want {
		t.Errorf("FinalURL = %q, want %q", page.FinalURL, want)
	}
	if page.Text != "Clip Video currently unavailable" {
		t.Errorf("Text = %q", page.Text)
	}
}

func TestSessionRender_StopsAfterMaxHops(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		fmt.Fprintf(w, `<meta http-equiv="refresh" content="0;url=/hop%d">`, hits)
	}))
	defer server.Close()

	s := newTestSession(t, DefaultSessionConfig())
	if _, err := s.Render(context.Background(), server.URL+"/start", time.Second); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if hits != maxRenderHops+1 {
		t.Errorf("hits = %d, want %d", hits, maxRenderHops+1)
	}
}

func TestVisibleText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><title> T </title><style>.x{}</style></head><body>a<noscript>n</noscript> b</body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	if got := VisibleText(doc); got != "T a b" {
		t.Errorf("VisibleText() = %q, want %q", got, "T a b")
	}
}

func TestParseRefresh(t *testing.T) {
	tests := []struct {
		content string
		want    string
		wantOK  bool
	}{
		{"0; url=https://www.tiktok.com/@a/video/1", "https://www.tiktok.com/@a/video/1", true},
		{"0;URL='/@a/video/1'", "/@a/video/1", true},
		{`5; url = "x"`, "x", true},
		{"0", "", false},
		{"0; foo=bar", "", false},
		{"0; url=", "", false},
	}

	for _, tt := range tests {
		got, ok := ParseRefresh(tt.content)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("ParseRefresh(%q) = (%q, %v), want (%q, %v)", tt.content, got, ok, tt.want, tt.wantOK)
		}
	}
}
