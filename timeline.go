/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/TomCDN/TuneTimeline/games/timeline"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
	"golang.org/x/text/language"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 1 << 20
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inbound is a frame from the browser.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outbound is a frame to the browser.
type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type joinRoomRequest struct {
	RoomCode string `json:"roomCode"`
	UserName string `json:"userName"`
}

type roomActionRequest struct {
	RoomCode string          `json:"roomCode"`
	Action   string          `json:"action"`
	Data     json.RawMessage `json:"data"`
}

// Client is one live websocket. Its id is the connection identifier the
// game knows it by.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan outbound
	locale language.Tag
}

// Transport owns the live websockets and implements timeline.Sender.
type Transport struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	registry *timeline.Registry
	log      zerolog.Logger
}

func newTransport(log zerolog.Logger) *Transport {
	return &Transport{
		clients: make(map[string]*Client),
		log:     log.With().Str("module", "transport").Logger(),
	}
}

func (t *Transport) add(c *Client) {
	t.mu.Lock()
	t.clients[c.id] = c
	t.mu.Unlock()
}

// remove forgets the client and closes its send queue.
func (t *Transport) remove(id string) {
	t.mu.Lock()
	c, ok := t.clients[id]
	if ok {
		delete(t.clients, id)
		close(c.send)
	}
	t.mu.Unlock()
}

// Send queues ev for connID. A client whose queue is full is dropped.
func (t *Transport) Send(connID string, ev timeline.Event) {
	t.mu.RLock()
	c, ok := t.clients[connID]
	if !ok {
		t.mu.RUnlock()
		return
	}

	frame := outbound{Event: ev.Name, Data: ev.Data}
	if err, isErr := ev.Data.(error); isErr {
		frame.Data = timeline.Localize(c.locale, err)
	}

	select {
	case c.send <- frame:
		t.mu.RUnlock()
	default:
		t.mu.RUnlock()
		t.log.Warn().Str("conn", connID).Str("event", ev.Name).Msg("send queue full, dropping client")
		go func() {
			_ = c.conn.Close()
		}()
	}
}

func (t *Transport) clientLocale(cfg *Config, r *http.Request) language.Tag {
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return timeline.MatchLocale(accept)
	}

	return cfg.defaultLocale
}

func serveSocket(cfg *Config, t *Transport) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.log.Error().Err(err).Str("remote", realIP(r)).Msg("upgrade failed")
			return
		}

		c := &Client{
			id:     uuid.NewString(),
			conn:   conn,
			send:   make(chan outbound, sendBuffer),
			locale: t.clientLocale(cfg, r),
		}

		t.add(c)

		logf(cfg, "SERVE: Connection %s from %s", c.id, realIP(r))

		go c.writePump()
		c.readPump(r.Context(), t)
	}
}

func (c *Client) readPump(ctx context.Context, t *Transport) {
	defer func() {
		t.registry.Disconnect(context.WithoutCancel(ctx), c.id)
		t.remove(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxFrame)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				t.log.Debug().Err(err).Str("conn", c.id).Msg("read failed")
			}
			return
		}

		t.handle(ctx, c, msg)
	}
}

// handle routes one inbound frame to the registry.
func (t *Transport) handle(ctx context.Context, c *Client, msg inbound) {
	reg := t.registry

	switch msg.Event {
	case "create-room":
		var name string
		if err := json.Unmarshal(msg.Data, &name); err != nil {
			t.Send(c.id, timeline.ErrorEvent(c.id, timeline.ErrInvalidPayload))
			return
		}
		_, _ = reg.Create(ctx, c.id, strings.TrimSpace(name))
	case "join-room":
		var req joinRoomRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Send(c.id, timeline.ErrorEvent(c.id, timeline.ErrInvalidPayload))
			return
		}
		_, _ = reg.Join(ctx, c.id, req.RoomCode, strings.TrimSpace(req.UserName))
	case "join-team", "set-team-name":
		var req struct {
			RoomCode string `json:"roomCode"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Send(c.id, timeline.ErrorEvent(c.id, timeline.ErrInvalidPayload))
			return
		}
		t.dispatch(ctx, c, req.RoomCode, msg.Event, msg.Data)
	case "admin-login":
		var password string
		if err := json.Unmarshal(msg.Data, &password); err != nil {
			t.Send(c.id, timeline.ErrorEvent(c.id, timeline.ErrInvalidPayload))
			return
		}
		reg.AdminLogin(c.id, password)
	case "game-action":
		var req roomActionRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			t.Send(c.id, timeline.ErrorEvent(c.id, timeline.ErrInvalidPayload))
			return
		}
		t.dispatch(ctx, c, req.RoomCode, req.Action, req.Data)
	default:
		t.Send(c.id, timeline.ErrorEvent(c.id, timeline.ErrUnknownAction))
	}
}

func (t *Transport) dispatch(ctx context.Context, c *Client, code, name string, data json.RawMessage) {
	a, err := timeline.DecodeAction(name, data)
	if err != nil {
		t.Send(c.id, timeline.ErrorEvent(c.id, err))
		return
	}

	if err := t.registry.Dispatch(ctx, c.id, code, a); err != nil {
		t.log.Debug().Err(err).Str("conn", c.id).Str("room", code).Str("action", name).Msg("action rejected")
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveQR renders a PNG QR code pointing at the join URL of a room.
func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := timeline.NormalizeCode(ps.ByName("room"))
		if code == "" {
			http.Error(w, "missing room code", http.StatusBadRequest)
			return
		}

		scheme := cfg.scheme()
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/timeline/" + code

		const qrSize = 320
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

// registerTimeline sets up routes so that:
//   - $prefix/timeline/:room     → HTML client, pre-filled with the room code
//   - $prefix/timeline/:room/qr  → PNG QR code for that room
//   - $prefix/ws                 → the game websocket
func registerTimeline(cfg *Config, t *Transport, mux *httprouter.Router, errs chan<- error) {
	mux.GET(cfg.prefix+"/timeline/:room", serveHomePage(cfg, errs))
	mux.GET(cfg.prefix+"/timeline/:room/qr", serveQR(cfg, errs))
	mux.GET(cfg.prefix+"/ws", serveSocket(cfg, t))
}
