/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/text/language"
)

func TestLocalize(t *testing.T) {
	tests := []struct {
		name string
		tag  language.Tag
		err  error
		want string
	}{
		{"dutch", language.Dutch, ErrRoomNotFound, "Kamer niet gevonden."},
		{"english", language.English, ErrRoomNotFound, "Room not found."},
		{"wrapped", language.English, fmt.Errorf("join: %w", ErrNoVotes), "There are no votes yet!"},
		{"with cause", language.English, ErrInvalidPayload.with(errors.New("bad json")), "Invalid data for this action."},
		{"foreign error", language.Dutch, errors.New("boom"), "Ongeldige gegevens voor deze actie."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Localize(tt.tag, tt.err); got != tt.want {
				t.Errorf("Localize = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEveryCodeIsTranslated(t *testing.T) {
	for code := range dutch {
		if _, ok := english[code]; !ok {
			t.Errorf("%s has no English message", code)
		}
	}
	if len(dutch) != len(english) {
		t.Errorf("catalog sizes differ: %d nl, %d en", len(dutch), len(english))
	}
}

func TestMatchLocale(t *testing.T) {
	tests := []struct {
		in   string
		want language.Tag
	}{
		{"", language.Dutch},
		{"en-US,en;q=0.9", language.English},
		{"nl-BE", language.Dutch},
		{"not a locale!!", language.Dutch},
	}

	for _, tt := range tests {
		if got := MatchLocale(tt.in); got != tt.want {
			t.Errorf("MatchLocale(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestParseLocale(t *testing.T) {
	tests := []struct {
		in      string
		want    language.Tag
		wantErr bool
	}{
		{"nl", language.Dutch, false},
		{"en-GB", language.English, false},
		{"fr", language.Und, true},
		{"??", language.Und, true},
	}

	for _, tt := range tests {
		got, err := ParseLocale(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseLocale(%q) = %s, %v", tt.in, got, err)
		}
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := ErrTrackSourceFailure.with(errors.New("timeout"))

	if !errors.Is(err, ErrTrackSourceFailure) {
		t.Fatal("annotated error does not match its sentinel")
	}
	if errors.Is(err, ErrRoomNotFound) {
		t.Fatal("error matched a different code")
	}
	if err.Error() != "no tracks found in playlist: timeout" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
