/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"math/rand"
	"slices"
)

// Outcome is what a handled action asks of its hub: events to deliver, and
// work that must not run inside the room's loop.
type Outcome struct {
	Events []Event

	// RevealLater schedules a reveal after the hub's reveal delay.
	RevealLater bool

	// FetchURL asks for a playlist fetch on behalf of the acting
	// connection.
	FetchURL string
}

func (o *Outcome) emit(ev ...Event) {
	o.Events = append(o.Events, ev...)
}

func (r *Room) updateEvent() Event {
	return roomEvent(EventRoomUpdate, r.View())
}

// authorize checks the acting connection's rights for a. Admins pass every
// host check except the ones reserved for the host alone.
func (r *Room) authorize(connID string, isAdmin bool, a Action) error {
	isHost := connID != "" && connID == r.Host

	switch a.privilege() {
	case hostOrAdmin:
		if !isHost && !isAdmin {
			return ErrUnauthorized
		}
	case hostOnly:
		if !isHost {
			return ErrUnauthorized
		}
	case adminOnly:
		if !isAdmin {
			return ErrAdminRequired
		}
	}

	return nil
}

// Apply validates and performs a for connID. A rejected action returns an
// error and leaves the room untouched.
func (r *Room) Apply(connID string, isAdmin bool, a Action) (Outcome, error) {
	var out Outcome

	if _, ok := r.players[connID]; !ok && !isAdmin {
		return out, ErrNotInRoom
	}
	if err := r.authorize(connID, isAdmin, a); err != nil {
		return out, err
	}

	var err error
	switch a := a.(type) {
	case JoinTeam:
		err = r.JoinTeam(connID, a.Team)
		if err == nil {
			out.emit(r.updateEvent())
		}

	case SetTeamName:
		var t *Team
		if t, err = r.team(a.Team); err == nil {
			t.Name = a.TeamName
			out.emit(r.updateEvent())
		}

	case StartGame:
		r.startGame()
		out.emit(r.updateEvent(), roomEvent(EventGameStarted, nil))

	case InitStarterCards:
		r.teams[Team1].Timeline = []Song{a.Team1Song}
		r.teams[Team2].Timeline = []Song{a.Team2Song}
		r.History = append(r.History, a.Team1Song, a.Team2Song)
		out.emit(r.updateEvent())

	case PlaySong:
		r.playSong(a.Song)
		out.emit(r.updateEvent(), roomEvent(EventNewSong, NewSongPayload{
			Song:       a.Song,
			ActiveTeam: r.ActiveTeam,
			TurnState:  r.Turn,
		}))

	case SubmitVote:
		err = r.submitVote(connID, a, &out)

	case ConfirmPlacement:
		err = r.confirmPlacement(connID, isAdmin, a.Team, &out)

	case SubmitPlacement:
		if _, err = r.team(a.Team); err == nil {
			r.place(a.Claim, &out)
		}

	case SubmitChallenge:
		err = r.submitChallenge(connID, isAdmin, a.Claim, &out)

	case SkipChallenge:
		var id TeamID
		if id, err = r.challenger(connID, isAdmin, a.Team); err == nil {
			out.emit(roomEvent(EventChallengeSkipped, SkipChallenge{Team: id}))
			r.reveal(&out)
		}

	case RevealYear:
		r.reveal(&out)

	case SetTargetScore:
		if a.Score <= 0 {
			return out, ErrInvalidPayload
		}
		r.TargetScore = a.Score
		out.emit(r.updateEvent())

	case ClaimToken:
		err = r.claimToken(connID, a.Team, &out)

	case FetchPlaylist:
		if a.URL == "" {
			return out, ErrInvalidPayload
		}
		out.FetchURL = a.URL

	case SetPlaylistTracks:
		r.Tracks = slices.Clone(a.Tracks)

	case SetOracle:
		err = r.setOracle(a.Team, a.Oracle)
		if err == nil {
			out.emit(r.updateEvent())
		}

	case RandomizeTeams:
		r.randomizeTeams()
		out.emit(r.updateEvent())

	case ResetGame:
		r.resetGame()
		out.emit(r.updateEvent(), roomEvent(EventGameReset, nil))

	default:
		err = ErrUnknownAction
	}

	if err != nil {
		return Outcome{}, err
	}

	r.touch()

	return out, nil
}

func (r *Room) startGame() {
	r.Phase = PhasePlaying
	r.ActiveTeam = Team1
	r.Turn = TurnPlaying
	for _, t := range r.teams {
		t.resetGame()
	}
}

func (r *Room) resetGame() {
	r.Phase = PhaseLobby
	r.Turn = TurnPlaying
	r.ActiveTeam = Team1
	r.CurrentSong = nil
	r.Placement = nil
	r.Challenge = nil
	r.TokenClaimed = false
	r.History = []Song{}
	for _, t := range r.teams {
		t.resetGame()
	}
}

func (r *Room) playSong(s Song) {
	r.CurrentSong = &s
	r.Turn = TurnPlaying
	r.Placement = nil
	r.Challenge = nil
	r.TokenClaimed = false
	r.History = append(r.History, s)
}

// canActFor reports whether connID may act on behalf of team id.
func (r *Room) canActFor(connID string, isAdmin bool, id TeamID) bool {
	if isAdmin || connID == r.Host {
		return true
	}
	return r.teams[id].hasMember(connID)
}

func (r *Room) submitVote(connID string, v SubmitVote, out *Outcome) error {
	t, err := r.team(v.Team)
	if err != nil {
		return err
	}
	if !t.hasMember(connID) {
		return ErrNotATeamMember
	}

	t.Votes.Cast(connID, v.Pos)

	out.emit(roomEvent(EventVoteUpdate, VoteUpdatePayload{
		Team:       v.Team,
		Votes:      t.snapshot().Votes,
		VoterCount: len(t.Players),
	}))

	return nil
}

func (r *Room) confirmPlacement(connID string, isAdmin bool, id TeamID, out *Outcome) error {
	t, err := r.team(id)
	if err != nil {
		return err
	}
	if !r.canActFor(connID, isAdmin, id) {
		return ErrNotATeamMember
	}

	pos, err := ResolveVotes(&t.Votes, t.Oracle)
	if err != nil {
		return err
	}

	t.Votes.Clear()
	r.place(Claim{Team: id, Pos: pos}, out)

	return nil
}

func (r *Room) place(c Claim, out *Outcome) {
	r.Placement = &c
	r.Challenge = nil
	r.Turn = TurnChallenging

	out.emit(roomEvent(EventPlacementSubmitted, PlacementPayload{
		Team:      c.Team,
		Pos:       c.Pos,
		TurnState: r.Turn,
	}), r.updateEvent())
}

// challenger returns the team that may answer the open placement, checking
// that connID may act for it. An empty id names that team.
func (r *Room) challenger(connID string, isAdmin bool, id TeamID) (TeamID, error) {
	if r.Turn != TurnChallenging || r.Placement == nil || r.Challenge != nil {
		return "", ErrNothingToChallenge
	}

	opponent := r.Placement.Team.Other()
	if id == "" {
		id = opponent
	}
	if _, err := r.team(id); err != nil {
		return "", err
	}
	if id != opponent {
		return "", ErrOwnPlacement
	}
	if !r.canActFor(connID, isAdmin, id) {
		return "", ErrNotATeamMember
	}

	return id, nil
}

func (r *Room) submitChallenge(connID string, isAdmin bool, c Claim, out *Outcome) error {
	id, err := r.challenger(connID, isAdmin, c.Team)
	if err != nil {
		return err
	}
	if r.teams[id].Tokens <= 0 {
		return ErrNoTokens
	}

	c.Team = id
	r.Challenge = &c
	out.emit(roomEvent(EventChallengeSubmitted, c), r.updateEvent())
	out.RevealLater = true

	return nil
}

func (r *Room) claimToken(connID string, id TeamID, out *Outcome) error {
	t, err := r.team(id)
	if err != nil {
		return err
	}
	if r.TokenClaimed {
		return ErrAlreadyClaimed
	}
	if t.Tokens >= MaxTokens {
		return ErrTokenCapReached
	}

	t.Tokens++
	r.TokenClaimed = true

	var name string
	if p, ok := r.players[connID]; ok {
		name = p.Name
	}

	out.emit(roomEvent(EventTokenClaimed, TokenClaimedPayload{
		Team:      id,
		ClaimedBy: name,
	}), r.updateEvent())

	return nil
}

func (r *Room) setOracle(id TeamID, oracle string) error {
	t, err := r.team(id)
	if err != nil {
		return err
	}

	if oracle != "" {
		if len(t.Players)%2 != 0 {
			return ErrOddMemberCount
		}
		if !t.hasMember(oracle) {
			return ErrNotATeamMember
		}
	}

	t.Oracle = oracle

	return nil
}

// randomizeTeams deals every player alternately onto the two teams in a
// uniformly shuffled order. Scores, tokens and timelines are kept.
func (r *Room) randomizeTeams() {
	ids := slices.Clone(r.order)
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	for _, t := range r.teams {
		t.Players = []Member{}
		t.Oracle = ""
		t.Votes.Clear()
	}

	for i, id := range ids {
		target := Team1
		if i%2 == 1 {
			target = Team2
		}
		p := r.players[id]
		p.Team = target
		r.teams[target].Players = append(r.teams[target].Players, Member{ConnID: id, Name: p.Name})
	}
}

// LoadTracks stores a fetched playlist. A fetch requested by connID
// reports an empty result to that connection instead; the background load
// at room creation (empty connID) stores whatever it got.
func (r *Room) LoadTracks(connID string, tracks []Track) ([]Event, error) {
	if connID != "" && len(tracks) == 0 {
		return nil, ErrTrackSourceFailure
	}
	if tracks == nil {
		tracks = []Track{}
	}

	r.Tracks = tracks

	var evs []Event
	if connID != "" {
		evs = append(evs, directEvent(connID, EventPlaylistLoaded, PlaylistLoadedPayload{
			Count:  len(tracks),
			Tracks: tracks,
		}))
	}

	return append(evs, r.updateEvent()), nil
}

// Reveal settles the current round. It does nothing without a current song
// and placement, so late or repeated triggers are harmless.
func (r *Room) Reveal() []Event {
	var out Outcome
	r.reveal(&out)
	return out.Events
}

func (r *Room) reveal(out *Outcome) {
	if r.CurrentSong == nil || r.Placement == nil {
		return
	}

	song := *r.CurrentSong
	p := *r.Placement
	placer := r.teams[p.Team]

	correct := CorrectIndex(placer.Timeline, song.Year)

	res := RevealResult{
		ActualYear:    song.Year,
		PlacerCorrect: p.Pos == correct,
		Placement:     p,
		Challenge:     r.Challenge,
	}

	if c := r.Challenge; c != nil {
		challenger := r.teams[c.Team]
		challenger.Tokens--

		switch {
		case c.Pos == correct:
			res.ChallengerCorrect = true
			res.Stolen = true
			res.Winner = c.Team
			challenger.win(song)
		case res.PlacerCorrect:
			res.Winner = p.Team
			placer.win(song)
		}
	} else if res.PlacerCorrect {
		res.Winner = p.Team
		placer.win(song)
	}

	r.ActiveTeam = r.ActiveTeam.Other()
	r.Turn = TurnPlaying
	r.Placement = nil
	r.Challenge = nil

	payload := YearRevealedPayload{
		Results:  res,
		Teams:    r.teamsSnapshot(),
		NextTeam: r.ActiveTeam,
	}
	if id, ok := r.Winner(); ok {
		name := r.teams[id].Name
		payload.GameWinner = &name
	}

	out.emit(roomEvent(EventYearRevealed, payload), r.updateEvent())
}
