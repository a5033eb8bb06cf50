/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import "github.com/TomCDN/TuneTimeline/tracks"

// Song is a played card. Year decides its place on a timeline; the rest is
// display metadata forwarded to clients untouched.
type Song struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Year   int    `json:"year"`
	URL    string `json:"url,omitempty"`
}

// Track is a playlist entry, before it has been resolved to a playable song.
type Track = tracks.Track
