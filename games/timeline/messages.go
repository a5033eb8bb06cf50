/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"errors"
	"fmt"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Locales the error catalog carries. The first entry is the fallback.
var supportedLocales = []language.Tag{language.Dutch, language.English}

var localeMatcher = language.NewMatcher(supportedLocales)

var dutch = map[Code]string{
	CodeRoomNotFound:        "Kamer niet gevonden.",
	CodeUnauthorized:        "Alleen de host of een admin kan deze actie uitvoeren.",
	CodeAdminRequired:       "Admin-rechten vereist.",
	CodeNoVotes:             "Er zijn nog geen stemmen!",
	CodeAlreadyClaimed:      "Token al geclaimd voor dit nummer!",
	CodeTokenCapReached:     "Maximaal 5 tokens bereikt!",
	CodeNoTokens:            "Jullie hebben geen tokens meer om uit te dagen.",
	CodeOddMemberCount:      "Al-wetende kan alleen worden ingesteld bij een even aantal spelers!",
	CodeNotATeamMember:      "Deze speler zit niet in het team!",
	CodeTrackSourceFailure:  "Kon geen nummers vinden in de Spotify playlist of playlist is niet publiek.",
	CodeUnknownTeam:         "Onbekend team.",
	CodeInvalidPayload:      "Ongeldige gegevens voor deze actie.",
	CodeUnknownAction:       "Onbekende actie.",
	CodeNotInRoom:           "Je zit niet in deze kamer.",
	CodeIncorrectAdminLogin: "Onjuiste admin code!",
	CodeNothingToChallenge:  "Er is geen plaatsing om uit te dagen.",
	CodeOwnPlacement:        "Alleen het andere team kan deze plaatsing uitdagen.",
}

var english = map[Code]string{
	CodeRoomNotFound:        "Room not found.",
	CodeUnauthorized:        "Only the host or an admin can perform this action.",
	CodeAdminRequired:       "Admin privileges required.",
	CodeNoVotes:             "There are no votes yet!",
	CodeAlreadyClaimed:      "Token already claimed for this song!",
	CodeTokenCapReached:     "Maximum of 5 tokens reached!",
	CodeNoTokens:            "Your team has no tokens left to challenge with.",
	CodeOddMemberCount:      "An oracle can only be set when the team has an even number of players!",
	CodeNotATeamMember:      "That player is not on this team!",
	CodeTrackSourceFailure:  "Could not find any tracks in the Spotify playlist, or the playlist is not public.",
	CodeUnknownTeam:         "Unknown team.",
	CodeInvalidPayload:      "Invalid data for this action.",
	CodeUnknownAction:       "Unknown action.",
	CodeNotInRoom:           "You are not in this room.",
	CodeIncorrectAdminLogin: "Incorrect admin code!",
	CodeNothingToChallenge:  "There is no placement to challenge.",
	CodeOwnPlacement:        "Only the other team can challenge this placement.",
}

var errorCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(supportedLocales[0]))
	for code, msg := range dutch {
		_ = b.SetString(language.Dutch, string(code), msg)
	}
	for code, msg := range english {
		_ = b.SetString(language.English, string(code), msg)
	}
	return b
}

// MatchLocale resolves a client-supplied language string to one of the
// catalog's locales.
func MatchLocale(lang string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(lang)
	if err != nil || len(tags) == 0 {
		return supportedLocales[0]
	}
	_, idx, _ := localeMatcher.Match(tags...)
	return supportedLocales[idx]
}

// ParseLocale resolves a configured language to one of the catalog's
// locales. Languages without a usable match are rejected.
func ParseLocale(s string) (language.Tag, error) {
	tag, err := language.Parse(s)
	if err != nil {
		return language.Und, err
	}
	_, idx, conf := localeMatcher.Match(tag)
	if conf == language.No {
		return language.Und, fmt.Errorf("no messages for %s", tag)
	}
	return supportedLocales[idx], nil
}

// Localize renders err as a user-facing message. Errors that are not room
// errors are reported without detail.
func Localize(tag language.Tag, err error) string {
	var e *Error
	if !errors.As(err, &e) {
		e = ErrInvalidPayload
	}
	p := message.NewPrinter(tag, message.Catalog(errorCatalog))
	return p.Sprintf(message.Key(string(e.Code), e.Message))
}
