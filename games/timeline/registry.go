/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	codeLength  = 5
	codeLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Options configures every room a Registry creates.
type Options struct {
	AdminPassword   string
	DefaultPlaylist string
	TargetScore     int
	RevealDelay     time.Duration
	FetchTimeout    time.Duration
	// IdleTimeout closes rooms that handled nothing for this long. Zero
	// disables reaping.
	IdleTimeout time.Duration
}

// Registry maps room codes to running rooms and tracks which room each
// connection is in, plus the process-wide set of admin connections.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Hub
	members map[string]string // connID -> room code

	adminMu sync.RWMutex
	admins  map[string]bool

	opts   Options
	sender Sender
	source TrackSource
	log    zerolog.Logger
}

// NewRegistry returns an empty registry. The idle reaper, if enabled, runs
// until ctx is done.
func NewRegistry(ctx context.Context, opts Options, sender Sender, source TrackSource, log zerolog.Logger) *Registry {
	reg := &Registry{
		rooms:   make(map[string]*Hub),
		members: make(map[string]string),
		admins:  make(map[string]bool),
		opts:    opts,
		sender:  sender,
		source:  source,
		log:     log.With().Str("module", "timeline.registry").Logger(),
	}
	if opts.IdleTimeout > 0 {
		go reg.reaperLoop(ctx)
	}
	return reg
}

// newCode generates a crypto-random room code. Callers hold reg.mu.
func (reg *Registry) newCode() string {
	const limit = byte(255 - (256 % len(codeLetters)))

	buf := make([]byte, codeLength*2)
	for {
		out := make([]byte, 0, codeLength)
		for len(out) < codeLength {
			if _, err := rand.Read(buf); err != nil {
				panic("crypto/rand failure: " + err.Error())
			}
			for _, b := range buf {
				if b <= limit && len(out) < codeLength {
					out = append(out, codeLetters[int(b)%len(codeLetters)])
				}
			}
		}

		if _, exists := reg.rooms[string(out)]; !exists {
			return string(out)
		}
	}
}

// NormalizeCode turns a typed room code into its canonical form.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create opens a new room with connID as its host and only player, and
// starts loading the default playlist in the background.
func (reg *Registry) Create(ctx context.Context, connID, name string) (string, error) {
	reg.leaveCurrent(ctx, connID)

	reg.mu.Lock()
	code := reg.newCode()
	room := NewRoom(code, reg.opts.TargetScore)
	room.AddPlayer(connID, name)

	hub := newHub(room, hubConfig{
		sender:      reg.sender,
		source:      reg.source,
		revealDelay: reg.opts.RevealDelay,
		fetchTime:   reg.opts.FetchTimeout,
		onEmpty:     reg.Remove,
		log:         reg.log,
	})
	reg.rooms[code] = hub
	reg.members[connID] = code
	reg.mu.Unlock()

	go hub.run()

	reg.log.Info().Str("room", code).Str("conn", connID).Str("host", name).Msg("room created")

	err := hub.do(ctx, func(r *Room) {
		hub.deliver([]Event{directEvent(connID, EventRoomCreated, RoomCreatedPayload{
			RoomCode: code,
			UserName: name,
		})})
		if reg.opts.DefaultPlaylist != "" {
			hub.fetch("", reg.opts.DefaultPlaylist)
		}
	})

	return code, err
}

// Hub returns the running room for code.
func (reg *Registry) Hub(code string) (*Hub, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	h, ok := reg.rooms[NormalizeCode(code)]
	return h, ok
}

// Len is the number of open rooms.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// RoomOf returns the code of the room connID is in.
func (reg *Registry) RoomOf(connID string) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	code, ok := reg.members[connID]
	return code, ok
}

// Join adds connID to the room with the given code.
func (reg *Registry) Join(ctx context.Context, connID, code, name string) (View, error) {
	code = NormalizeCode(code)

	hub, ok := reg.Hub(code)
	if !ok {
		reg.failConn(connID, ErrRoomNotFound)
		return View{}, ErrRoomNotFound
	}

	v, err := hub.join(ctx, connID, name)
	if err != nil {
		reg.failConn(connID, err)
		return View{}, err
	}

	// The old seat is only given up once the new one is taken.
	if current, ok := reg.RoomOf(connID); ok && current != code {
		reg.leaveCurrent(ctx, connID)
	}

	reg.mu.Lock()
	reg.members[connID] = code
	reg.mu.Unlock()

	reg.log.Info().Str("room", code).Str("conn", connID).Str("player", name).Msg("player joined")

	return v, nil
}

// Dispatch runs a room action for connID in the room with the given code.
func (reg *Registry) Dispatch(ctx context.Context, connID, code string, a Action) error {
	hub, ok := reg.Hub(code)
	if !ok {
		reg.failConn(connID, ErrRoomNotFound)
		return ErrRoomNotFound
	}

	return hub.Dispatch(ctx, connID, reg.IsAdmin(connID), a)
}

// AdminLogin grants connID admin rights if password matches the shared
// secret.
func (reg *Registry) AdminLogin(connID, password string) bool {
	ok := reg.opts.AdminPassword != "" &&
		subtle.ConstantTimeCompare([]byte(password), []byte(reg.opts.AdminPassword)) == 1

	if ok {
		reg.adminMu.Lock()
		reg.admins[connID] = true
		reg.adminMu.Unlock()
		reg.log.Info().Str("conn", connID).Msg("admin authenticated")
	}

	if reg.sender != nil {
		reg.sender.Send(connID, directEvent(connID, EventAdminAuthenticated, ok))
		if !ok {
			reg.sender.Send(connID, ErrorEvent(connID, ErrIncorrectAdminLogin))
		}
	}

	return ok
}

func (reg *Registry) IsAdmin(connID string) bool {
	reg.adminMu.RLock()
	defer reg.adminMu.RUnlock()
	return reg.admins[connID]
}

// Disconnect forgets connID: its admin rights, and its seat in whatever
// room it was in. Rooms left empty are removed.
func (reg *Registry) Disconnect(ctx context.Context, connID string) {
	reg.adminMu.Lock()
	delete(reg.admins, connID)
	reg.adminMu.Unlock()

	reg.leaveCurrent(ctx, connID)
}

func (reg *Registry) leaveCurrent(ctx context.Context, connID string) {
	reg.mu.Lock()
	code, ok := reg.members[connID]
	delete(reg.members, connID)
	hub := reg.rooms[code]
	reg.mu.Unlock()

	if !ok || hub == nil {
		return
	}

	if err := hub.leave(ctx, connID); err != nil {
		reg.log.Debug().Err(err).Str("room", code).Str("conn", connID).Msg("leave after room closed")
	}
}

// Remove deletes a room and stops its hub.
func (reg *Registry) Remove(code string) {
	reg.mu.Lock()
	hub, ok := reg.rooms[code]
	if ok {
		delete(reg.rooms, code)
		for id, c := range reg.members {
			if c == code {
				delete(reg.members, id)
			}
		}
	}
	reg.mu.Unlock()

	if !ok {
		return
	}

	hub.Close()
	reg.log.Info().Str("room", code).Msg("room removed")
}

// Close stops every room.
func (reg *Registry) Close() {
	reg.mu.Lock()
	hubs := make([]*Hub, 0, len(reg.rooms))
	for code, h := range reg.rooms {
		hubs = append(hubs, h)
		delete(reg.rooms, code)
	}
	clear(reg.members)
	reg.mu.Unlock()

	for _, h := range hubs {
		h.Close()
	}
}

func (reg *Registry) failConn(connID string, err error) {
	if reg.sender != nil {
		reg.sender.Send(connID, ErrorEvent(connID, err))
	}
}

// reaperLoop periodically removes rooms idle longer than the idle timeout.
func (reg *Registry) reaperLoop(ctx context.Context) {
	ticker := time.NewTicker(reg.opts.IdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reg.reap(time.Now().Add(-reg.opts.IdleTimeout))
		}
	}
}

func (reg *Registry) reap(cutoff time.Time) {
	reg.mu.RLock()
	var idle []string
	for code, h := range reg.rooms {
		if h.LastActive().Before(cutoff) {
			idle = append(idle, code)
		}
	}
	reg.mu.RUnlock()

	for _, code := range idle {
		reg.log.Info().Str("room", code).Msg("reaping idle room")
		reg.Remove(code)
	}
}
