/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (rec *recorder) Send(connID string, ev Event) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	ev.To = connID
	rec.events = append(rec.events, ev)
}

func (rec *recorder) count(connID, name string) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	n := 0
	for _, ev := range rec.events {
		if ev.To == connID && ev.Name == name {
			n++
		}
	}
	return n
}

func (rec *recorder) last(connID, name string) (Event, bool) {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	for i := len(rec.events) - 1; i >= 0; i-- {
		if ev := rec.events[i]; ev.To == connID && ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

func (rec *recorder) wait(t *testing.T, connID, name string) Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok := rec.last(connID, name); ok {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("no %s event for %s", name, connID)
	return Event{}
}

type fakeSource struct {
	tracks []Track
	calls  atomic.Int32
}

func (f *fakeSource) Fetch(_ context.Context, _ string) []Track {
	f.calls.Add(1)
	return f.tracks
}

func newTestRegistry(t *testing.T, opts Options, source TrackSource) (*Registry, *recorder) {
	t.Helper()
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	reg := NewRegistry(ctx, opts, rec, source, zerolog.Nop())
	t.Cleanup(func() {
		cancel()
		reg.Close()
	})
	return reg, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestCreateRoom(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	code, err := reg.Create(ctx, "c1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	if len(code) != codeLength {
		t.Fatalf("code %q has length %d", code, len(code))
	}
	for _, ch := range code {
		if !strings.ContainsRune(codeLetters, ch) {
			t.Fatalf("code %q contains %q", code, ch)
		}
	}

	ev := rec.wait(t, "c1", EventRoomCreated)
	if p := ev.Data.(RoomCreatedPayload); p.RoomCode != code || p.UserName != "Alice" {
		t.Errorf("room-created = %+v", p)
	}

	if got, ok := reg.RoomOf("c1"); !ok || got != code {
		t.Errorf("RoomOf = %q, %v", got, ok)
	}

	hub, _ := reg.Hub(strings.ToLower(code))
	if hub == nil {
		t.Fatal("lookup is not case-insensitive")
	}
	_ = hub.do(ctx, func(r *Room) {
		if r.Host != "c1" || r.PlayerCount() != 1 {
			t.Errorf("host %q players %d", r.Host, r.PlayerCount())
		}
	})
}

func TestCreateLoadsDefaultPlaylist(t *testing.T) {
	source := &fakeSource{tracks: []Track{{Name: "One", Artist: "A"}, {Name: "Two", Artist: "B"}}}
	reg, rec := newTestRegistry(t, Options{DefaultPlaylist: "https://open.spotify.com/playlist/x"}, source)

	code, err := reg.Create(context.Background(), "c1", "Alice")
	if err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		ev, ok := rec.last("c1", EventRoomUpdate)
		return ok && len(ev.Data.(View).PlaylistTracks) == 2
	})

	if source.calls.Load() != 1 {
		t.Errorf("fetches = %d", source.calls.Load())
	}
	if rec.count("c1", EventPlaylistLoaded) != 0 {
		t.Error("default load should not report playlist-loaded")
	}

	hub, _ := reg.Hub(code)
	_ = hub.do(context.Background(), func(r *Room) {
		if len(r.Tracks) != 2 {
			t.Errorf("tracks = %v", r.Tracks)
		}
	})
}

func TestJoinRoom(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	if _, err := reg.Join(ctx, "c2", "NOPE1", "Bob"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("join unknown err = %v", err)
	}
	if rec.count("c2", EventError) != 1 {
		t.Fatal("missing error-msg for unknown room")
	}

	code, _ := reg.Create(ctx, "c1", "Alice")

	v, err := reg.Join(ctx, "c2", " "+strings.ToLower(code)+" ", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Players) != 2 || v.Players["c2"] != "Bob" || v.Host != "c1" {
		t.Fatalf("view = %+v", v)
	}
	if rec.count("c1", EventRoomUpdate) == 0 || rec.count("c2", EventRoomUpdate) == 0 {
		t.Fatal("join was not broadcast to the room")
	}
}

func TestDisconnectReassignsHostAndRemovesEmptyRoom(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	code, _ := reg.Create(ctx, "c1", "Alice")
	if _, err := reg.Join(ctx, "c2", code, "Bob"); err != nil {
		t.Fatal(err)
	}

	reg.Disconnect(ctx, "c1")

	hub, ok := reg.Hub(code)
	if !ok {
		t.Fatal("room removed while a player remains")
	}
	_ = hub.do(ctx, func(r *Room) {
		if r.Host != "c2" {
			t.Errorf("host = %q, want c2", r.Host)
		}
	})

	reg.Disconnect(ctx, "c2")
	waitFor(t, func() bool { return reg.Len() == 0 })

	if _, ok := reg.RoomOf("c2"); ok {
		t.Error("membership survived room removal")
	}
	if err := reg.Dispatch(ctx, "c2", code, StartGame{}); !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("dispatch to removed room err = %v", err)
	}
}

func TestCreateLeavesPreviousRoom(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	first, _ := reg.Create(ctx, "c1", "Alice")
	second, _ := reg.Create(ctx, "c1", "Alice")

	waitFor(t, func() bool { return reg.Len() == 1 })

	if _, ok := reg.Hub(first); ok {
		t.Fatal("abandoned room still open")
	}
	if code, _ := reg.RoomOf("c1"); code != second {
		t.Fatalf("RoomOf = %q, want %q", code, second)
	}
}

func TestJoinClosedRoomKeepsCurrentSeat(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	first, _ := reg.Create(ctx, "c1", "Alice")
	second, _ := reg.Create(ctx, "c2", "Bob")

	closing, ok := reg.Hub(second)
	if !ok {
		t.Fatal("second room missing")
	}
	closing.Close()

	if _, err := reg.Join(ctx, "c1", second, "Alice"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("join closed room err = %v", err)
	}
	if rec.count("c1", EventError) != 1 {
		t.Fatal("missing error-msg for closed room")
	}

	if code, ok := reg.RoomOf("c1"); !ok || code != first {
		t.Fatalf("RoomOf = %q, %v, want %q", code, ok, first)
	}
	hub, ok := reg.Hub(first)
	if !ok {
		t.Fatal("original room was closed")
	}
	_ = hub.do(ctx, func(r *Room) {
		if _, ok := r.Player("c1"); !ok {
			t.Error("player lost their seat in the original room")
		}
	})
}

func TestJoinMovesBetweenRooms(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	first, _ := reg.Create(ctx, "c1", "Alice")
	second, _ := reg.Create(ctx, "c2", "Bob")

	if _, err := reg.Join(ctx, "c1", second, "Alice"); err != nil {
		t.Fatal(err)
	}

	if code, _ := reg.RoomOf("c1"); code != second {
		t.Fatalf("RoomOf = %q, want %q", code, second)
	}
	waitFor(t, func() bool {
		_, ok := reg.Hub(first)
		return !ok
	})
}

// startRound puts a created room with two teams of one into the challenge
// phase: c1 hosts and plays for team1, c2 plays for team2.
func startRound(t *testing.T, reg *Registry) string {
	t.Helper()
	ctx := context.Background()

	code, _ := reg.Create(ctx, "c1", "Alice")
	if _, err := reg.Join(ctx, "c2", code, "Bob"); err != nil {
		t.Fatal(err)
	}

	steps := []struct {
		conn   string
		action Action
	}{
		{"c1", JoinTeam{Team: Team1}},
		{"c2", JoinTeam{Team: Team2}},
		{"c1", StartGame{}},
		{"c1", InitStarterCards{Team1Song: Song{Title: "a", Year: 1970}, Team2Song: Song{Title: "b", Year: 2000}}},
		{"c1", PlaySong{Song: Song{Title: "c", Year: 1980}}},
		{"c1", SubmitVote{Team: Team1, Pos: 0}},
		{"c1", ConfirmPlacement{Team: Team1}},
	}
	for _, s := range steps {
		if err := reg.Dispatch(ctx, s.conn, code, s.action); err != nil {
			t.Fatalf("%s: %v", s.action.Name(), err)
		}
	}

	return code
}

func TestChallengeRevealsAfterDelay(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{RevealDelay: 100 * time.Millisecond}, nil)
	code := startRound(t, reg)

	if err := reg.Dispatch(context.Background(), "c2", code, SubmitChallenge{Claim: Claim{Team: Team2, Pos: 1}}); err != nil {
		t.Fatal(err)
	}
	if rec.count("c1", EventChallengeSubmitted) != 1 {
		t.Fatal("challenge not broadcast")
	}
	if rec.count("c1", EventYearRevealed) != 0 {
		t.Fatal("reveal did not wait for the delay")
	}

	ev := rec.wait(t, "c2", EventYearRevealed)
	res := ev.Data.(YearRevealedPayload).Results
	if !res.Stolen || res.Winner != Team2 {
		t.Errorf("result = %+v", res)
	}
}

func TestStaleRevealIsSuppressed(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{RevealDelay: 50 * time.Millisecond}, nil)
	code := startRound(t, reg)
	ctx := context.Background()

	if err := reg.Dispatch(ctx, "c2", code, SubmitChallenge{Claim: Claim{Team: Team2, Pos: 1}}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Dispatch(ctx, "c1", code, RevealYear{}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(150 * time.Millisecond)

	if n := rec.count("c1", EventYearRevealed); n != 1 {
		t.Fatalf("year-revealed sent %d times, want 1", n)
	}
}

func TestRejectedActionNotifiesOnlyCaller(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()
	code, _ := reg.Create(ctx, "c1", "Alice")
	if _, err := reg.Join(ctx, "c2", code, "Bob"); err != nil {
		t.Fatal(err)
	}

	err := reg.Dispatch(ctx, "c2", code, StartGame{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v", err)
	}

	ev, ok := rec.last("c2", EventError)
	if !ok || !errors.Is(ev.Data.(error), ErrUnauthorized) {
		t.Fatalf("error event = %+v", ev)
	}
	if rec.count("c1", EventError) != 0 {
		t.Fatal("error leaked to another connection")
	}
}

func TestAdminLogin(t *testing.T) {
	reg, rec := newTestRegistry(t, Options{AdminPassword: "MASTER"}, &fakeSource{})
	ctx := context.Background()

	if reg.AdminLogin("c1", "master") {
		t.Fatal("wrong password accepted")
	}
	if ev, _ := rec.last("c1", EventAdminAuthenticated); ev.Data != false {
		t.Fatalf("admin-authenticated = %v", ev.Data)
	}
	if rec.count("c1", EventError) != 1 {
		t.Fatal("failed login not reported")
	}

	if !reg.AdminLogin("c1", "MASTER") || !reg.IsAdmin("c1") {
		t.Fatal("admin login failed")
	}

	code, _ := reg.Create(ctx, "c2", "Host")

	// An admin may act in a room without joining it.
	if err := reg.Dispatch(ctx, "c1", code, StartGame{}); err != nil {
		t.Fatalf("admin start: %v", err)
	}

	// The source finds nothing, which an explicit fetch reports.
	if err := reg.Dispatch(ctx, "c1", code, FetchPlaylist{URL: "https://open.spotify.com/playlist/x"}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		last, _ := rec.last("c1", EventError)
		err, _ := last.Data.(error)
		return errors.Is(err, ErrTrackSourceFailure)
	})

	reg.Disconnect(ctx, "c1")
	if reg.IsAdmin("c1") {
		t.Fatal("admin rights survived disconnect")
	}
}

func TestReapIdleRooms(t *testing.T) {
	reg, _ := newTestRegistry(t, Options{}, nil)
	ctx := context.Background()

	code, _ := reg.Create(ctx, "c1", "Alice")

	reg.reap(time.Now().Add(-time.Hour))
	if reg.Len() != 1 {
		t.Fatal("active room reaped")
	}

	reg.reap(time.Now().Add(time.Hour))
	if reg.Len() != 0 {
		t.Fatal("idle room kept")
	}
	if _, err := reg.Join(ctx, "c2", code, "Bob"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("join reaped room err = %v", err)
	}
}
