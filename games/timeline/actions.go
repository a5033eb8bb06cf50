/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Action is an inbound request against a room. Each variant carries its own
// payload; Apply dispatches on the concrete type.
type Action interface {
	// Name is the action's wire name.
	Name() string

	privilege() privilege
}

type privilege int

const (
	anyone privilege = iota
	hostOrAdmin
	hostOnly
	adminOnly
)

type (
	JoinTeam struct {
		Team TeamID `json:"team"`
	}

	SetTeamName struct {
		Team     TeamID `json:"team"`
		TeamName string `json:"name"`
	}

	StartGame struct{}

	InitStarterCards struct {
		Team1Song Song `json:"team1Song"`
		Team2Song Song `json:"team2Song"`
	}

	PlaySong struct {
		Song Song
	}

	SubmitVote struct {
		Team TeamID `json:"teamId"`
		Pos  int    `json:"pos"`
	}

	ConfirmPlacement struct {
		Team TeamID `json:"teamId"`
	}

	SubmitPlacement struct {
		Claim
	}

	SubmitChallenge struct {
		Claim
	}

	SkipChallenge struct {
		Team TeamID `json:"teamId"`
	}

	RevealYear struct{}

	SetTargetScore struct {
		Score int
	}

	ClaimToken struct {
		Team TeamID `json:"teamId"`
	}

	FetchPlaylist struct {
		URL string
	}

	SetPlaylistTracks struct {
		Tracks []Track
	}

	SetOracle struct {
		Team   TeamID `json:"teamId"`
		Oracle string `json:"oracleSid"`
	}

	RandomizeTeams struct{}

	ResetGame struct{}
)

func (JoinTeam) Name() string          { return "join-team" }
func (SetTeamName) Name() string       { return "set-team-name" }
func (StartGame) Name() string         { return "start-game" }
func (InitStarterCards) Name() string  { return "init-starter-cards" }
func (PlaySong) Name() string          { return "play-song" }
func (SubmitVote) Name() string        { return "submit-vote" }
func (ConfirmPlacement) Name() string  { return "confirm-placement" }
func (SubmitPlacement) Name() string   { return "submit-placement" }
func (SubmitChallenge) Name() string   { return "submit-challenge" }
func (SkipChallenge) Name() string     { return "skip-challenge" }
func (RevealYear) Name() string        { return "reveal-year" }
func (SetTargetScore) Name() string    { return "set-target-score" }
func (ClaimToken) Name() string        { return "claim-token" }
func (FetchPlaylist) Name() string     { return "fetch-playlist" }
func (SetPlaylistTracks) Name() string { return "set-playlist-tracks" }
func (SetOracle) Name() string         { return "set-oracle" }
func (RandomizeTeams) Name() string    { return "randomize-teams" }
func (ResetGame) Name() string         { return "reset-game" }

func (JoinTeam) privilege() privilege          { return anyone }
func (SetTeamName) privilege() privilege       { return hostOnly }
func (StartGame) privilege() privilege         { return hostOrAdmin }
func (InitStarterCards) privilege() privilege  { return hostOrAdmin }
func (PlaySong) privilege() privilege          { return hostOrAdmin }
func (SubmitVote) privilege() privilege        { return anyone }
func (ConfirmPlacement) privilege() privilege  { return anyone }
func (SubmitPlacement) privilege() privilege   { return hostOrAdmin }
func (SubmitChallenge) privilege() privilege   { return anyone }
func (SkipChallenge) privilege() privilege     { return anyone }
func (RevealYear) privilege() privilege        { return hostOrAdmin }
func (SetTargetScore) privilege() privilege    { return hostOnly }
func (ClaimToken) privilege() privilege        { return anyone }
func (FetchPlaylist) privilege() privilege     { return adminOnly }
func (SetPlaylistTracks) privilege() privilege { return anyone }
func (SetOracle) privilege() privilege         { return hostOrAdmin }
func (RandomizeTeams) privilege() privilege    { return hostOnly }
func (ResetGame) privilege() privilege         { return hostOnly }

// DecodeAction builds the action variant named name from its raw payload.
func DecodeAction(name string, data json.RawMessage) (Action, error) {
	switch name {
	case "join-team":
		return decodeInto[JoinTeam](data)
	case "set-team-name":
		return decodeInto[SetTeamName](data)
	case "start-game":
		return StartGame{}, nil
	case "init-starter-cards":
		return decodeInto[InitStarterCards](data)
	case "play-song":
		s, err := decodeInto[Song](data)
		return PlaySong{Song: s}, err
	case "submit-vote":
		return decodeInto[SubmitVote](data)
	case "confirm-placement":
		return decodeInto[ConfirmPlacement](data)
	case "submit-placement":
		c, err := decodeInto[Claim](data)
		return SubmitPlacement{Claim: c}, err
	case "submit-challenge":
		c, err := decodeInto[Claim](data)
		return SubmitChallenge{Claim: c}, err
	case "skip-challenge":
		if len(data) == 0 || string(data) == "null" {
			return SkipChallenge{}, nil
		}
		return decodeInto[SkipChallenge](data)
	case "reveal-year":
		return RevealYear{}, nil
	case "set-target-score":
		n, err := decodeInt(data)
		return SetTargetScore{Score: n}, err
	case "claim-token":
		return decodeInto[ClaimToken](data)
	case "fetch-playlist":
		u, err := decodeInto[string](data)
		return FetchPlaylist{URL: strings.TrimSpace(u)}, err
	case "set-playlist-tracks":
		t, err := decodeInto[[]Track](data)
		return SetPlaylistTracks{Tracks: t}, err
	case "set-oracle":
		return decodeInto[SetOracle](data)
	case "randomize-teams":
		return RandomizeTeams{}, nil
	case "reset-game":
		return ResetGame{}, nil
	}

	return nil, ErrUnknownAction
}

func decodeInto[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, ErrInvalidPayload
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, ErrInvalidPayload.with(err)
	}
	return v, nil
}

// decodeInt accepts a JSON number or a numeric string, as clients send form
// values verbatim.
func decodeInt(data json.RawMessage) (int, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, ErrInvalidPayload.with(err)
	}

	switch n := v.(type) {
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, ErrInvalidPayload.with(err)
		}
		return i, nil
	}

	return 0, ErrInvalidPayload
}
