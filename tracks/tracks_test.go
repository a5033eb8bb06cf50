/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package tracks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const embedPage = `<!DOCTYPE html><html><head></head><body>
<div id="root"></div>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"state":{"data":{"entity":{"trackList":[{"title":"Golden Brown","subtitle":"The Stranglers"},{"title":"Heroes","subtitle":"David Bowie"}]}}}}}}</script>
</body></html>`

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		ref     string
		want    string
		wantErr error
	}{
		{"https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "37i9dQZF1DXcBWIGoYBM5M", nil},
		{" https://open.spotify.com/playlist/abc123?si=xyz ", "abc123", nil},
		{"https://open.spotify.com/intl-nl/playlist/abc123", "abc123", nil},
		{"http://open.spotify.com/playlist/abc123", "", ErrNotSpotify},
		{"https://evil.example/playlist/abc123", "", ErrNotSpotify},
		{"https://open.spotify.com/album/abc123", "", ErrInvalidPlaylist},
	}

	for _, tt := range tests {
		got, err := PlaylistID(tt.ref)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("PlaylistID(%q) err = %v, want %v", tt.ref, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("PlaylistID(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestStateScriptFallback(t *testing.T) {
	page := `<html><body><script id="initial-state">{"x":1}</script></body></html>`

	got, err := stateScript(strings.NewReader(page))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"x":1}` {
		t.Errorf("state = %s", got)
	}

	if _, err := stateScript(strings.NewReader(`<html><script>var x;</script></html>`)); !errors.Is(err, ErrNoStateScript) {
		t.Errorf("err = %v, want ErrNoStateScript", err)
	}
}

func newTestSpotify(t *testing.T, h http.HandlerFunc) *Spotify {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewSpotify(zerolog.Nop(), WithClient(srv.Client()), WithEmbedBase(srv.URL+"/"))
}

func TestFetch(t *testing.T) {
	var gotPath, gotAgent string
	s := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(embedPage))
	})

	got := s.Fetch(context.Background(), "https://open.spotify.com/playlist/abc123")

	if len(got) != 2 || got[1] != (Track{Name: "Heroes", Artist: "David Bowie"}) {
		t.Fatalf("Fetch = %+v", got)
	}
	if gotPath != "/embed/playlist/abc123" {
		t.Errorf("path = %q", gotPath)
	}
	if !strings.HasPrefix(gotAgent, "Mozilla/5.0") {
		t.Errorf("user agent = %q", gotAgent)
	}
}

func TestFetchFailuresYieldNothing(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		handler http.HandlerFunc
	}{
		{"bad status", "https://open.spotify.com/playlist/a", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusTooManyRequests)
		}},
		{"no state", "https://open.spotify.com/playlist/a", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html></html>"))
		}},
		{"empty list", "https://open.spotify.com/playlist/a", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`<script id="__NEXT_DATA__">{"trackList":[]}</script>`))
		}},
		{"foreign link", "https://example.com/playlist/a", func(w http.ResponseWriter, r *http.Request) {
			t.Error("foreign link was fetched")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSpotify(t, tt.handler)
			if got := s.Fetch(context.Background(), tt.ref); len(got) != 0 {
				t.Errorf("Fetch = %+v, want nothing", got)
			}
		})
	}
}

func TestFetchSharesConcurrentRequests(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})

	s := newTestSpotify(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		_, _ = w.Write([]byte(embedPage))
	})

	var wg sync.WaitGroup
	results := make([][]Track, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Fetch(context.Background(), "https://open.spotify.com/playlist/same")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times, want 1", n)
	}
	for i, r := range results {
		if len(r) != 2 {
			t.Errorf("caller %d got %+v", i, r)
		}
	}

	results[0][0].Name = "changed"
	if results[1][0].Name == "changed" {
		t.Error("callers share one slice")
	}
}
