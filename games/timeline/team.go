/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import "slices"

// TeamID names one of the two teams of a room.
type TeamID string

const (
	Team1 TeamID = "team1"
	Team2 TeamID = "team2"
)

// TeamIDs in the fixed order used for winner checks and views.
var TeamIDs = [2]TeamID{Team1, Team2}

func (id TeamID) Valid() bool {
	return id == Team1 || id == Team2
}

// Other returns the opposing team.
func (id TeamID) Other() TeamID {
	if id == Team1 {
		return Team2
	}
	return Team1
}

const (
	StartingTokens = 2
	MaxTokens      = 5
)

// Member is a team's reference to a player of its room.
type Member struct {
	ConnID string `json:"sid"`
	Name   string `json:"name"`
}

type Team struct {
	Name     string   `json:"name"`
	Players  []Member `json:"players"`
	Score    int      `json:"score"`
	Tokens   int      `json:"tokens"`
	Timeline []Song   `json:"timeline"`
	Oracle   string   `json:"oracle,omitempty"`
	Votes    Ballot   `json:"votes"`
}

func newTeam(name string) *Team {
	return &Team{
		Name:     name,
		Players:  []Member{},
		Tokens:   StartingTokens,
		Timeline: []Song{},
	}
}

// resetGame clears game data, keeping name and members.
func (t *Team) resetGame() {
	t.Timeline = []Song{}
	t.Score = 0
	t.Tokens = StartingTokens
	t.Votes.Clear()
}

func (t *Team) hasMember(connID string) bool {
	return slices.ContainsFunc(t.Players, func(m Member) bool { return m.ConnID == connID })
}

func (t *Team) removeMember(connID string) {
	t.Players = slices.DeleteFunc(t.Players, func(m Member) bool { return m.ConnID == connID })
	t.Votes.Withdraw(connID)
	if t.Oracle == connID {
		t.Oracle = ""
	}
}

// win awards the song to the team.
func (t *Team) win(s Song) {
	t.Timeline = insertSorted(t.Timeline, s)
	t.Score++
}
