/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

// Package tracks loads playlist contents from Spotify's public embed page.
//
// The embed page is not an API. Its track list lives in a JSON blob whose
// shape changes without notice, so extraction tries an ordered list of
// strategies and takes the first non-empty result. Every failure is logged
// and reported as an empty list.
package tracks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"
)

// Track is one playlist entry.
type Track struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
}

const (
	spotifyPrefix  = "https://open.spotify.com/"
	defaultEmbed   = "https://open.spotify.com"
	maxBodySize    = 8 << 20
	defaultTimeout = 15 * time.Second
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

var (
	ErrNotSpotify      = errors.New("only open.spotify.com links are allowed")
	ErrInvalidPlaylist = errors.New("invalid spotify playlist url")
	ErrNoStateScript   = errors.New("embed page carries no state script")

	playlistPattern = regexp.MustCompile(`playlist/([a-zA-Z0-9]+)`)
)

// PlaylistID extracts the playlist id from a shared playlist link.
func PlaylistID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, spotifyPrefix) {
		return "", ErrNotSpotify
	}

	m := playlistPattern.FindStringSubmatch(ref)
	if m == nil {
		return "", ErrInvalidPlaylist
	}

	return m[1], nil
}

// Spotify fetches playlists through the embed page. Concurrent fetches of
// the same playlist share one request.
type Spotify struct {
	client    *http.Client
	embedBase string
	log       zerolog.Logger
	group     singleflight.Group
}

type Option func(*Spotify)

// WithClient sets the HTTP client used for fetches.
func WithClient(c *http.Client) Option {
	return func(s *Spotify) {
		s.client = c
	}
}

// WithEmbedBase points fetches at another host serving embed pages.
func WithEmbedBase(base string) Option {
	return func(s *Spotify) {
		s.embedBase = strings.TrimSuffix(base, "/")
	}
}

func NewSpotify(log zerolog.Logger, opts ...Option) *Spotify {
	s := &Spotify{
		client:    &http.Client{Timeout: defaultTimeout},
		embedBase: defaultEmbed,
		log:       log.With().Str("module", "tracks").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch returns the tracks of the playlist behind ref, or nil.
func (s *Spotify) Fetch(ctx context.Context, ref string) []Track {
	ctx, span := otel.Tracer("github.com/TomCDN/TuneTimeline/tracks").Start(ctx, "tracks.fetch")
	defer span.End()

	id, err := PlaylistID(ref)
	if err != nil {
		s.log.Warn().Err(err).Str("ref", ref).Msg("rejected playlist reference")
		return nil
	}
	span.SetAttributes(attribute.String("playlist", id))

	start := time.Now()

	v, err, shared := s.group.Do(id, func() (any, error) {
		return s.fetch(ctx, id)
	})
	if err != nil {
		span.RecordError(err)
		s.log.Warn().Err(err).Str("playlist", id).Msg("playlist fetch failed")
		return nil
	}

	found := v.([]Track)
	s.log.Info().
		Str("playlist", id).
		Int("tracks", len(found)).
		Bool("shared", shared).
		Dur("took", time.Since(start)).
		Msg("fetched playlist")

	return slices.Clone(found)
}

func (s *Spotify) fetch(ctx context.Context, id string) ([]Track, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.embedBase+"/embed/playlist/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embed page returned %s", resp.Status)
	}

	state, err := stateScript(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	found := Extract(state)
	if len(found) == 0 {
		return nil, errors.New("no tracks found in embed state")
	}

	return found, nil
}

// stateScript returns the contents of the page's __NEXT_DATA__ script, or
// of its initial-state script when the former is missing.
func stateScript(r io.Reader) ([]byte, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	scripts := make(map[string]string)

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "script" {
			for _, a := range n.Attr {
				if a.Key == "id" && n.FirstChild != nil {
					scripts[a.Val] = n.FirstChild.Data
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	for _, id := range []string{"__NEXT_DATA__", "initial-state"} {
		if body, ok := scripts[id]; ok {
			return []byte(body), nil
		}
	}

	return nil, ErrNoStateScript
}
