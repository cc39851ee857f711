// Blind Builder
//
// A host opens a room and shares its code. Players join, one of them is
// assigned as the architect, and the server reveals the round's target
// pattern only to the host and the architect. The architect describes the
// pattern out loud (under per-round communication constraints) while the
// other players rebuild it blind on a 5x5 grid and submit their attempts
// for scoring.
//
// Features:
// - One websocket per participant at /ws; rooms are created and joined
//   over the socket itself
// - Short typeable room codes via crypto/rand, with collision retry
// - Host actions authorized by a per-room secret issued at creation
// - Per-viewer redacted snapshots: the target is hidden from builders
//   mid-round, and nobody sees another builder's grid before reveal
// - Automatic round expiry on a 250ms sweep, same transition path as the
//   manual host command
// - Rooms with no remaining connections reaped after a configurable
//   idle window
// - In-browser QR button to share the room join URL, backed by go-qrcode

package main

import (
	_ "embed"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const sweepInterval = 250 * time.Millisecond

// Client is one live websocket connection. roomCode and participantID are
// set once the connection is bound to a room, and only touched under the
// owning Builder's lock.
type Client struct {
	conn *websocket.Conn
	send chan outboundMessage

	roomCode      string
	participantID string
}

// Builder owns every room and every connection binding. One mutex
// serializes all room mutations: each inbound message and each sweep tick
// runs to completion before the next can observe room state.
type Builder struct {
	mu      sync.Mutex
	rooms   map[string]*Room
	clients map[*Client]bool

	roomTimeout time.Duration
	cfg         *Config
}

func newBuilder(cfg *Config) *Builder {
	return &Builder{
		rooms:       make(map[string]*Room),
		clients:     make(map[*Client]bool),
		roomTimeout: cfg.roomTimeout,
		cfg:         cfg,
	}
}

func (b *Builder) register(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clients[c] = true
}

// disconnect unbinds the connection and removes its participant, then
// tells the remaining viewers about the new roster. Called from the read
// pump on any transport failure, so an abrupt close and a clean close
// share one cleanup path.
func (b *Builder) disconnect(c *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.clients[c] {
		delete(b.clients, c)
		close(c.send)
	}

	if c.roomCode == "" {
		return
	}

	room, ok := b.rooms[c.roomCode]
	c.roomCode = ""
	if !ok {
		return
	}

	room.removeParticipant(c.participantID)
	room.touch()
	b.broadcastLocked(room)
}

// dropLocked unregisters a client whose send buffer is full. The write
// pump exits on the closed channel and closes the socket, which lands the
// read pump in disconnect for the rest of the cleanup.
func (b *Builder) dropLocked(c *Client) {
	if b.clients[c] {
		delete(b.clients, c)
		close(c.send)
	}
}

func (b *Builder) sendLocked(c *Client, msg outboundMessage) {
	if !b.clients[c] {
		return
	}
	select {
	case c.send <- msg:
	default:
		b.dropLocked(c)
	}
}

// broadcastLocked pushes one freshly redacted snapshot per connection
// bound to the room. Never a shared message: every viewer gets a view
// computed for their own participant id at send time.
func (b *Builder) broadcastLocked(room *Room) {
	for c := range b.clients {
		if c.roomCode != room.code {
			continue
		}
		b.sendLocked(c, outboundMessage{
			Type:    msgRoomState,
			Payload: buildSnapshot(room, c.participantID),
		})
	}
}

func (b *Builder) createRoomLocked() *Room {
	for {
		code := newRoomCode()
		if _, exists := b.rooms[code]; exists {
			continue
		}

		room := newRoom(code)
		b.rooms[code] = room
		return room
	}
}

func normalizeRoomCode(code string) string {
	code = strings.ToUpper(code)
	var sb strings.Builder
	for _, r := range code {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
		if sb.Len() >= 10 {
			break
		}
	}
	return sb.String()
}

// handleMessage dispatches one inbound envelope. Unknown types and
// payloads that fail to decode are dropped without touching room state.
func (b *Builder) handleMessage(c *Client, env envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()

	switch env.Type {
	case msgCreateRoom:
		var payload createRoomPayload
		_ = json.Unmarshal(env.Payload, &payload)

		room := b.createRoomLocked()
		host := room.addParticipant(payload.Name, RoleHost)
		c.roomCode = room.code
		c.participantID = host.ID

		logf(b.cfg, "ROOMS: Created room %s", room.code)

		b.sendLocked(c, outboundMessage{
			Type: msgRoomCreated,
			Payload: roomCreatedPayload{
				Code:          room.code,
				HostKey:       room.hostKey,
				ParticipantID: host.ID,
			},
		})
		b.broadcastLocked(room)

	case msgJoinRoom:
		var payload joinRoomPayload
		if err := json.Unmarshal(env.Payload, &payload); err != nil {
			return
		}

		room, ok := b.rooms[normalizeRoomCode(payload.Code)]
		if !ok {
			b.sendLocked(c, errorMessage("Room not found"))
			return
		}

		player := room.addParticipant(payload.Name, RolePlayer)
		room.touch()
		c.roomCode = room.code
		c.participantID = player.ID

		logf(b.cfg, "ROOMS: %q joined room %s", player.Name, room.code)

		b.sendLocked(c, outboundMessage{
			Type: msgJoined,
			Payload: joinedPayload{
				ParticipantID: player.ID,
				Code:          room.code,
			},
		})
		b.broadcastLocked(room)

	case msgHostAction, msgSubmitGrid, msgRequestState, msgPingState:
		if c.roomCode == "" {
			b.sendLocked(c, errorMessage("Not in a room"))
			return
		}

		room, ok := b.rooms[c.roomCode]
		if !ok {
			return
		}
		me, ok := room.participants[c.participantID]
		if !ok {
			return
		}
		room.touch()

		switch env.Type {
		case msgHostAction:
			b.handleHostAction(c, room, me, env.Payload, now)
		case msgSubmitGrid:
			var payload submitGridPayload
			if err := json.Unmarshal(env.Payload, &payload); err != nil {
				return
			}
			if err := room.recordSubmission(me.ID, payload.Grid, now); err != nil {
				return
			}
			b.broadcastLocked(room)
		case msgRequestState, msgPingState:
			b.sendLocked(c, outboundMessage{
				Type:    msgRoomState,
				Payload: buildSnapshot(room, me.ID),
			})
		}

	default:
		// ignore unknown types
	}
}

// handleHostAction runs a host command after checking both the caller's
// role and the room secret. A failed check mutates nothing.
func (b *Builder) handleHostAction(c *Client, room *Room, me *Participant, raw json.RawMessage, now time.Time) {
	var payload hostActionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	if me.Role != RoleHost || payload.HostKey != room.hostKey {
		b.sendLocked(c, errorMessage("Host authorization failed"))
		return
	}

	switch payload.Action {
	case actAssignArchitect:
		if len(room.playerIDs()) == 0 {
			return
		}
		room.assignNextArchitect()
		b.broadcastLocked(room)

	case actStartRound:
		b.startRoundLocked(c, room, now)

	case actSetPhase:
		if !validPhase(payload.Phase) {
			return
		}
		if payload.Phase == PhaseRound {
			b.startRoundLocked(c, room, now)
			return
		}
		room.setPhase(payload.Phase)
		b.broadcastLocked(room)

	case actNextRound:
		room.nextRound()
		b.broadcastLocked(room)

	case actAddRule:
		if !room.addRule(payload.Text) {
			return
		}
		b.broadcastLocked(room)

	case actClearRules:
		room.clearRules()
		b.broadcastLocked(room)
	}
}

// startRoundLocked is the single entry into the round phase, shared by
// start_round and set_phase{round} so both enforce the architect
// precondition and reset submissions identically.
func (b *Builder) startRoundLocked(c *Client, room *Room, now time.Time) {
	if room.architectID == "" {
		b.sendLocked(c, errorMessage("Assign an architect first"))
		return
	}
	room.startRound(now)
	logf(b.cfg, "ROOMS: Round %d started in %s", room.roundIndex, room.code)
	b.broadcastLocked(room)
}

// run drives the round timer and the room reaper on one shared ticker.
func (b *Builder) run() {
	ticker := time.NewTicker(sweepInterval)
	for range ticker.C {
		b.sweep(time.Now())
	}
}

// sweep expires overdue rounds through the same setPhase path as the
// manual host command, then reaps rooms nobody is connected to. One pass
// over rooms and one over clients, so tick cost stays bounded.
func (b *Builder) sweep(now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, room := range b.rooms {
		if room.phase == PhaseRound && !room.roundEndsAt.IsZero() && !now.Before(room.roundEndsAt) {
			room.setPhase(PhaseReveal)
			logf(b.cfg, "ROOMS: Round %d expired in %s", room.roundIndex, room.code)
			b.broadcastLocked(room)
		}
	}

	if b.roomTimeout <= 0 {
		return
	}

	connected := make(map[string]int, len(b.rooms))
	for c := range b.clients {
		if c.roomCode != "" {
			connected[c.roomCode]++
		}
	}

	cutoff := now.Add(-b.roomTimeout)
	for code, room := range b.rooms {
		if connected[code] == 0 && room.lastActive.Before(cutoff) {
			delete(b.rooms, code)
			logf(b.cfg, "ROOMS: Reaped idle room %s", code)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(b *Builder) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan outboundMessage, 8),
		}

		b.register(client)

		go client.writePump()
		client.readPump(b)
	}
}

func (c *Client) readPump(b *Builder) {
	defer func() {
		b.disconnect(c)
		_ = c.conn.Close()
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			continue
		}
		if env.Type == "" {
			continue
		}

		b.handleMessage(c, env)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current room URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	code := ps.ByName("code")
	if code == "" {
		http.Error(w, "missing room code", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /builder/:code/qr; strip trailing "/qr" to get the room URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed builder/index.html
var indexHTML []byte

//go:embed builder/app.css
var builderCSS []byte

//go:embed builder/app.js
var builderJS []byte

func getIndexHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(builderCSS)
	}
}

func getJsHandler(cfg *Config) func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(builderJS)
	}
}

// registerBuilderGame sets up routes so that:
//   - $path            → landing page (create or join a room)
//   - $path/:code      → room client, same shell
//   - $path/:code/qr   → PNG QR code for that room URL
//   - /ws              → the one websocket endpoint for all rooms
func registerBuilderGame(cfg *Config, path string, mux *httprouter.Router) {
	b := newBuilder(cfg)
	go b.run()

	mux.GET(cfg.prefix+path, getIndexHandler(cfg))
	mux.GET(cfg.prefix+path+"/:code", getIndexHandler(cfg))

	// Shared assets (no room code in route)
	mux.GET(cfg.prefix+"/assets/builder/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/builder/app.js", getJsHandler(cfg))

	// Per-room QR code
	mux.GET(cfg.prefix+path+"/:code/qr", qrHandler)

	mux.GET(cfg.prefix+"/ws", serveWS(b))
}
