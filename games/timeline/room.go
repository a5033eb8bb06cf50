/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"slices"
	"time"
)

// GamePhase is the room-level phase.
type GamePhase string

const (
	PhaseLobby   GamePhase = "lobby"
	PhasePlaying GamePhase = "playing"
)

// TurnPhase is the phase within a round while the game is playing.
type TurnPhase string

const (
	TurnPlaying     TurnPhase = "playing"
	TurnChallenging TurnPhase = "challenging"
)

const DefaultTargetScore = 10

// Player is a live connection in a room. Team is empty while unassigned.
type Player struct {
	Name string
	Team TeamID
}

// Claim is a team's guessed index for the current song on the placing
// team's timeline.
type Claim struct {
	Team TeamID `json:"teamId"`
	Pos  int    `json:"pos"`
}

// Room is the state of one game. It is not safe for concurrent use; a Hub
// serializes every access.
type Room struct {
	Code string
	Host string

	// players is keyed by connection id; order keeps join order for host
	// reassignment and team randomization.
	players map[string]*Player
	order   []string

	teams map[TeamID]*Team

	Phase       GamePhase
	Turn        TurnPhase
	ActiveTeam  TeamID
	CurrentSong *Song
	Placement   *Claim
	Challenge   *Claim
	TargetScore int
	// TokenClaimed is set once a token has been claimed for the current song.
	TokenClaimed bool
	History      []Song
	Tracks       []Track

	createdAt  time.Time
	lastActive time.Time
}

// NewRoom creates an empty room in the lobby with two default teams.
func NewRoom(code string, targetScore int) *Room {
	if targetScore <= 0 {
		targetScore = DefaultTargetScore
	}
	now := time.Now()
	return &Room{
		Code:    code,
		players: make(map[string]*Player),
		teams: map[TeamID]*Team{
			Team1: newTeam("Team 1"),
			Team2: newTeam("Team 2"),
		},
		Phase:       PhaseLobby,
		Turn:        TurnPlaying,
		ActiveTeam:  Team1,
		TargetScore: targetScore,
		History:     []Song{},
		Tracks:      []Track{},
		createdAt:   now,
		lastActive:  now,
	}
}

// Team returns one of the room's two teams, or nil for an unknown id.
func (r *Room) Team(id TeamID) *Team {
	return r.teams[id]
}

func (r *Room) team(id TeamID) (*Team, error) {
	t, ok := r.teams[id]
	if !ok {
		return nil, ErrUnknownTeam
	}
	return t, nil
}

// Player returns the player behind connID.
func (r *Room) Player(connID string) (*Player, bool) {
	p, ok := r.players[connID]
	return p, ok
}

func (r *Room) PlayerCount() int {
	return len(r.players)
}

func (r *Room) Empty() bool {
	return len(r.players) == 0
}

// AddPlayer registers connID without a team. Rejoining with the same id
// only renames.
func (r *Room) AddPlayer(connID, name string) {
	if p, ok := r.players[connID]; ok {
		p.Name = name
		return
	}
	r.players[connID] = &Player{Name: name}
	r.order = append(r.order, connID)
	if r.Host == "" {
		r.Host = connID
	}
}

// RemovePlayer drops connID from the room and its team. If the host left,
// the longest-present remaining player becomes host. It reports whether
// the player was present.
func (r *Room) RemovePlayer(connID string) bool {
	if _, ok := r.players[connID]; !ok {
		return false
	}
	delete(r.players, connID)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == connID })
	for _, t := range r.teams {
		t.removeMember(connID)
	}

	if r.Host == connID {
		r.Host = ""
		if len(r.order) > 0 {
			r.Host = r.order[0]
		}
	}

	return true
}

// JoinTeam moves a player to team id, mirroring the change in both the
// player record and the team member lists.
func (r *Room) JoinTeam(connID string, id TeamID) error {
	p, ok := r.players[connID]
	if !ok {
		return ErrNotInRoom
	}
	t, err := r.team(id)
	if err != nil {
		return err
	}

	if p.Team != "" {
		r.teams[p.Team].removeMember(connID)
	}
	p.Team = id
	t.Players = append(t.Players, Member{ConnID: connID, Name: p.Name})

	return nil
}

// Winner returns the first team, in TeamIDs order, that reached the target
// score.
func (r *Room) Winner() (TeamID, bool) {
	for _, id := range TeamIDs {
		if r.teams[id].Score >= r.TargetScore {
			return id, true
		}
	}
	return "", false
}

func (r *Room) touch() {
	r.lastActive = time.Now()
}

// LastActive is the time of the last handled action.
func (r *Room) LastActive() time.Time {
	return r.lastActive
}

// View is the full room state sent to every member after a change.
type View struct {
	RoomCode         string            `json:"roomCode"`
	Players          map[string]string `json:"players"`
	Teams            map[TeamID]*Team  `json:"teams"`
	GameState        GamePhase         `json:"gameState"`
	TurnState        TurnPhase         `json:"turnState"`
	ActiveTeam       TeamID            `json:"activeTeam"`
	CurrentSong      *Song             `json:"currentSong"`
	CurrentPlacement *Claim            `json:"currentPlacement"`
	CurrentChallenge *Claim            `json:"currentChallenge"`
	TargetScore      int               `json:"targetScore"`
	PlaylistTracks   []Track           `json:"playlistTracks"`
	History          []Song            `json:"history"`
	Host             string            `json:"host"`
}

// View snapshots the room. Teams are copied so the snapshot can be encoded
// outside the room's hub.
func (r *Room) View() View {
	players := make(map[string]string, len(r.players))
	for id, p := range r.players {
		players[id] = p.Name
	}

	return View{
		RoomCode:         r.Code,
		Players:          players,
		Teams:            r.teamsSnapshot(),
		GameState:        r.Phase,
		TurnState:        r.Turn,
		ActiveTeam:       r.ActiveTeam,
		CurrentSong:      r.CurrentSong,
		CurrentPlacement: r.Placement,
		CurrentChallenge: r.Challenge,
		TargetScore:      r.TargetScore,
		PlaylistTracks:   r.Tracks,
		History:          r.History,
		Host:             r.Host,
	}
}

func (t *Team) snapshot() *Team {
	c := *t
	c.Players = slices.Clone(t.Players)
	c.Votes = Ballot{}
	t.Votes.Each(c.Votes.Cast)
	return &c
}

// teamsSnapshot copies both teams for event payloads.
func (r *Room) teamsSnapshot() map[TeamID]*Team {
	teams := make(map[TeamID]*Team, len(r.teams))
	for id, t := range r.teams {
		teams[id] = t.snapshot()
	}
	return teams
}
