/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/TomCDN/TuneTimeline/games/timeline"

// TrackSource turns a playlist reference into tracks. It never fails: any
// problem yields an empty list.
type TrackSource interface {
	Fetch(ctx context.Context, ref string) []Track
}

type request struct {
	fn func(*Room)
	// ran receives whether fn was run; nil for posted work.
	ran chan bool
}

// Hub owns one room and runs every change to it on a single goroutine, so
// actions on a room never interleave. Work that waits on time or I/O runs
// elsewhere and re-enters through post.
type Hub struct {
	room *Room

	requests chan request
	quit     chan struct{}
	stop     sync.Once

	// closed is only touched by the run loop.
	closed bool

	lastActive atomic.Int64

	sender      Sender
	source      TrackSource
	revealDelay time.Duration
	fetchTime   time.Duration
	onEmpty     func(code string)

	log    zerolog.Logger
	tracer trace.Tracer
}

type hubConfig struct {
	sender      Sender
	source      TrackSource
	revealDelay time.Duration
	fetchTime   time.Duration
	onEmpty     func(code string)
	log         zerolog.Logger
}

func newHub(room *Room, cfg hubConfig) *Hub {
	h := &Hub{
		room:        room,
		requests:    make(chan request),
		quit:        make(chan struct{}),
		sender:      cfg.sender,
		source:      cfg.source,
		revealDelay: cfg.revealDelay,
		fetchTime:   cfg.fetchTime,
		onEmpty:     cfg.onEmpty,
		log:         cfg.log.With().Str("module", "timeline.hub").Str("room", room.Code).Logger(),
		tracer:      otel.Tracer(tracerName),
	}
	h.lastActive.Store(time.Now().UnixNano())
	return h
}

// Code is the room code of the hub's room.
func (h *Hub) Code() string {
	return h.room.Code
}

func (h *Hub) run() {
	for {
		select {
		case req := <-h.requests:
			select {
			case <-h.quit:
				h.closed = true
			default:
			}

			ran := !h.closed
			if ran {
				req.fn(h.room)
				h.lastActive.Store(time.Now().UnixNano())
			}
			if req.ran != nil {
				req.ran <- ran
			}
		case <-h.quit:
			return
		}
	}
}

// post queues fn on the room's loop without waiting. It reports false if
// the hub has stopped, in which case fn never runs.
func (h *Hub) post(fn func(*Room)) bool {
	select {
	case h.requests <- request{fn: fn}:
		return true
	case <-h.quit:
		return false
	}
}

// do runs fn on the room's loop and waits for it to finish.
func (h *Hub) do(ctx context.Context, fn func(*Room)) error {
	req := request{fn: fn, ran: make(chan bool, 1)}

	select {
	case h.requests <- req:
	case <-h.quit:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}

	if !<-req.ran {
		return ErrRoomNotFound
	}
	return nil
}

// LastActive is when the room last handled a request.
func (h *Hub) LastActive() time.Time {
	return time.Unix(0, h.lastActive.Load())
}

// Close stops the hub. Pending deferred work is dropped.
func (h *Hub) Close() {
	h.stop.Do(func() {
		close(h.quit)
	})
}

// shutdown is called from the loop once the last player has left.
func (h *Hub) shutdown() {
	h.closed = true
	h.log.Info().Msg("room is empty, closing")
	if h.onEmpty != nil {
		go h.onEmpty(h.room.Code)
	}
	h.Close()
}

// deliver hands events to the transport, fanning room events out over the
// room's current players.
func (h *Hub) deliver(evs []Event) {
	if h.sender == nil {
		return
	}
	for _, ev := range evs {
		if ev.To != "" {
			h.sender.Send(ev.To, ev)
			continue
		}
		for _, id := range h.room.order {
			ev.To = id
			h.sender.Send(id, ev)
		}
	}
}

func (h *Hub) fail(connID string, err error) {
	h.deliver([]Event{ErrorEvent(connID, err)})
}

// Dispatch applies a for connID on the room's loop. Rejections are reported
// to connID and returned.
func (h *Hub) Dispatch(ctx context.Context, connID string, isAdmin bool, a Action) error {
	var result error

	err := h.do(ctx, func(r *Room) {
		_, span := h.tracer.Start(ctx, "timeline.action", trace.WithAttributes(
			attribute.String("room", r.Code),
			attribute.String("action", a.Name()),
		))
		defer span.End()

		out, err := r.Apply(connID, isAdmin, a)
		if err != nil {
			span.RecordError(err)
			h.log.Debug().Err(err).Str("conn", connID).Str("action", a.Name()).Msg("action rejected")
			h.fail(connID, err)
			result = err
			return
		}

		h.log.Debug().Str("conn", connID).Str("action", a.Name()).Msg("action applied")
		h.deliver(out.Events)

		if out.RevealLater {
			h.scheduleReveal()
		}
		if out.FetchURL != "" {
			h.fetch(connID, out.FetchURL)
		}
	})
	if err != nil {
		return err
	}

	return result
}

// scheduleReveal settles the round after the reveal delay, giving clients
// time to show the challenge. A round that moved on meanwhile makes the
// reveal a no-op.
func (h *Hub) scheduleReveal() {
	time.AfterFunc(h.revealDelay, func() {
		h.post(func(r *Room) {
			_, span := h.tracer.Start(context.Background(), "timeline.reveal",
				trace.WithAttributes(attribute.String("room", r.Code)))
			defer span.End()

			h.deliver(r.Reveal())
		})
	})
}

// fetch loads a playlist in the background. connID is empty for the
// default load made at room creation.
func (h *Hub) fetch(connID, ref string) {
	if h.source == nil {
		return
	}

	go func() {
		ctx := context.Background()
		if h.fetchTime > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, h.fetchTime)
			defer cancel()
		}

		tracks := h.source.Fetch(ctx, ref)

		posted := h.post(func(r *Room) {
			evs, err := r.LoadTracks(connID, tracks)
			if err != nil {
				h.fail(connID, err)
				return
			}
			h.log.Info().Int("tracks", len(tracks)).Str("conn", connID).Msg("playlist loaded")
			h.deliver(evs)
		})
		if !posted {
			h.log.Debug().Msg("room closed before playlist load finished")
		}
	}()
}

// join adds a player and broadcasts the new view.
func (h *Hub) join(ctx context.Context, connID, name string) (View, error) {
	var v View

	err := h.do(ctx, func(r *Room) {
		r.AddPlayer(connID, name)
		r.touch()
		v = r.View()
		h.deliver([]Event{r.updateEvent()})
	})

	return v, err
}

// leave removes a player; the hub shuts down when the room empties.
func (h *Hub) leave(ctx context.Context, connID string) error {
	return h.do(ctx, func(r *Room) {
		hostBefore := r.Host
		if !r.RemovePlayer(connID) {
			return
		}

		if r.Empty() {
			h.shutdown()
			return
		}

		if hostBefore == connID {
			h.log.Info().Str("host", r.Host).Msg("host left, reassigned")
		}
		h.deliver([]Event{r.updateEvent()})
	})
}
