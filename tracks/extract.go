/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package tracks

import (
	"strings"

	"github.com/tidwall/gjson"
)

const unknown = "Unknown"

// Strategy pulls tracks out of an embed page's state document.
type Strategy func(doc gjson.Result) []Track

// Strategies are tried in order; the first non-empty result wins.
var Strategies = []Strategy{
	entityTrackList,
	playlistV2Items,
	anyTrackList,
}

// Extract runs Strategies over a raw state document.
func Extract(state []byte) []Track {
	if !gjson.ValidBytes(state) {
		return nil
	}
	doc := gjson.ParseBytes(state)

	for _, strategy := range Strategies {
		if found := strategy(doc); len(found) > 0 {
			return found
		}
	}

	return nil
}

func orUnknown(values ...gjson.Result) string {
	for _, v := range values {
		if s := v.String(); v.Exists() && s != "" {
			return s
		}
	}
	return unknown
}

// entityTrackList reads the current embed layout.
func entityTrackList(doc gjson.Result) []Track {
	list := doc.Get("props.pageProps.state.data.entity.trackList")
	if !list.IsArray() {
		return nil
	}

	var out []Track
	for _, item := range list.Array() {
		out = append(out, Track{
			Name:   orUnknown(item.Get("title")),
			Artist: orUnknown(item.Get("subtitle")),
		})
	}
	return out
}

// playlistV2Items reads the layout used by the full playlist page.
func playlistV2Items(doc gjson.Result) []Track {
	items := doc.Get("props.pageProps.data.playlistV2.content.items")
	if !items.IsArray() {
		return nil
	}

	var out []Track
	for _, item := range items.Array() {
		data := item.Get("item.data")
		if !data.IsObject() {
			continue
		}

		var artists []string
		for _, a := range data.Get("artists.items.#.name").Array() {
			artists = append(artists, a.String())
		}

		out = append(out, Track{
			Name:   orUnknown(data.Get("name")),
			Artist: strings.Join(artists, ", "),
		})
	}
	return out
}

// anyTrackList searches the whole document for the first non-empty
// trackList array.
func anyTrackList(doc gjson.Result) []Track {
	list, ok := findTrackList(doc)
	if !ok {
		return nil
	}

	var out []Track
	for _, item := range list.Array() {
		if !item.IsObject() {
			continue
		}
		out = append(out, Track{
			Name:   orUnknown(item.Get("title"), item.Get("name")),
			Artist: orUnknown(item.Get("subtitle"), item.Get("artist")),
		})
	}
	return out
}

func findTrackList(v gjson.Result) (gjson.Result, bool) {
	switch {
	case v.IsObject():
		if list := v.Get("trackList"); list.IsArray() && len(list.Array()) > 0 {
			return list, true
		}

		var found gjson.Result
		var ok bool
		v.ForEach(func(_, child gjson.Result) bool {
			found, ok = findTrackList(child)
			return !ok
		})
		return found, ok

	case v.IsArray():
		for _, child := range v.Array() {
			if found, ok := findTrackList(child); ok {
				return found, true
			}
		}
	}

	return gjson.Result{}, false
}
