/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

// Outbound event names.
const (
	EventRoomCreated        = "room-created"
	EventRoomUpdate         = "room-update"
	EventGameStarted        = "game-started"
	EventNewSong            = "new-song"
	EventPlacementSubmitted = "placement-submitted"
	EventChallengeSubmitted = "challenge-submitted"
	EventChallengeSkipped   = "challenge-skipped"
	EventYearRevealed       = "year-revealed"
	EventTokenClaimed       = "token-claimed-announcement"
	EventVoteUpdate         = "vote-update"
	EventGameReset          = "game-reset"
	EventPlaylistLoaded     = "playlist-loaded"
	EventAdminAuthenticated = "admin-authenticated"
	EventError              = "error-msg"
)

// Event is one outbound message. An empty To addresses the whole room.
type Event struct {
	Name string
	Data any
	To   string
}

func roomEvent(name string, data any) Event {
	return Event{Name: name, Data: data}
}

func directEvent(to, name string, data any) Event {
	return Event{Name: name, Data: data, To: to}
}

// ErrorEvent addresses a rejected request's error to the connection that
// made it. The transport localizes Data before encoding.
func ErrorEvent(to string, err error) Event {
	return directEvent(to, EventError, err)
}

// Sender delivers events to single connections. It is the transport's side
// of a room: hubs fan room events out over their members and hand each
// copy to Send. Implementations must not block.
type Sender interface {
	Send(connID string, ev Event)
}

type RoomCreatedPayload struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
}

type NewSongPayload struct {
	Song       Song      `json:"songData"`
	ActiveTeam TeamID    `json:"activeTeam"`
	TurnState  TurnPhase `json:"turnState"`
}

type PlacementPayload struct {
	Team      TeamID    `json:"teamId"`
	Pos       int       `json:"pos"`
	TurnState TurnPhase `json:"turnState"`
}

type VoteUpdatePayload struct {
	Team       TeamID `json:"teamId"`
	Votes      Ballot `json:"votes"`
	VoterCount int    `json:"voterCount"`
}

type TokenClaimedPayload struct {
	Team      TeamID `json:"teamId"`
	ClaimedBy string `json:"claimedBy"`
}

type PlaylistLoadedPayload struct {
	Count  int     `json:"count"`
	Tracks []Track `json:"tracks"`
}

// RevealResult is the settlement of one round.
type RevealResult struct {
	ActualYear        int    `json:"actualYear"`
	PlacerCorrect     bool   `json:"placerCorrect"`
	ChallengerCorrect bool   `json:"challengerCorrect"`
	Placement         Claim  `json:"placement"`
	Challenge         *Claim `json:"challenge"`
	Stolen            bool   `json:"stolen"`
	// Winner is the team that took the song, empty if it was discarded.
	Winner TeamID `json:"songWinner,omitempty"`
}

type YearRevealedPayload struct {
	Results  RevealResult     `json:"results"`
	Teams    map[TeamID]*Team `json:"teams"`
	NextTeam TeamID           `json:"nextTeam"`
	// GameWinner is the display name of the team that reached the target
	// score, or nil.
	GameWinner *string `json:"winner"`
}
