package main

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Phase string

const (
	PhaseLobby   Phase = "lobby"
	PhaseRound   Phase = "round"
	PhaseReveal  Phase = "reveal"
	PhaseReflect Phase = "reflect"
)

func validPhase(p Phase) bool {
	switch p {
	case PhaseLobby, PhaseRound, PhaseReveal, PhaseReflect:
		return true
	}
	return false
}

type Role string

const (
	RoleHost   Role = "host"
	RolePlayer Role = "player"
)

const maxNameLength = 24

// Participant is one connected person in a room.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Role     Role      `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Submission is a builder's latest reconstruction attempt, scored against
// the round's target. Resubmitting overwrites in place.
type Submission struct {
	RoundIndex  int
	Grid        Grid
	Score       int
	Stats       DiffStats
	SubmittedAt time.Time
}

// Constraints are communication restrictions for the current round.
// They are shown to participants but not enforced server-side.
type Constraints struct {
	BannedWords   []string `json:"bannedWords"`
	NoCoordinates bool     `json:"noCoordinates"`
}

// Room is the authoritative state for one session. Methods never lock;
// serialization is owned by the Builder that holds the room.
type Room struct {
	code       string
	hostKey    string
	createdAt  time.Time
	lastActive time.Time

	phase            Phase
	roundIndex       int
	roundEndsAt      time.Time // zero outside of round
	roundDurationSec int
	constraints      Constraints
	targetIndex      int

	participants map[string]*Participant
	joinOrder    []string // insertion order, kept for display and rotation
	architectID  string
	submissions  map[string]*Submission
	rules        []string
}

// Room codes are short and human-typeable; no 0/O/1/I or lowercase.
const (
	roomCodeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	roomCodeLength   = 4
)

func newRoomCode() string {
	buf := make([]byte, roomCodeLength)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, roomCodeLength)
	for i := range out {
		out[i] = roomCodeAlphabet[int(buf[i])%len(roomCodeAlphabet)]
	}
	return string(out)
}

func newHostKey() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	return hex.EncodeToString(buf)
}

func randomTargetIndex() int {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return int(b[0]) % len(targets)
}

// newRoom allocates a room in the lobby phase. Code uniqueness is the
// caller's responsibility, since only it can see the full room set.
func newRoom(code string) *Room {
	now := time.Now()
	r := &Room{
		code:         code,
		hostKey:      newHostKey(),
		createdAt:    now,
		lastActive:   now,
		phase:        PhaseLobby,
		targetIndex:  randomTargetIndex(),
		participants: make(map[string]*Participant),
		submissions:  make(map[string]*Submission),
		rules:        []string{},
	}
	r.applyRoundDefaults()
	return r
}

func (r *Room) touch() {
	r.lastActive = time.Now()
}

func (r *Room) target() Target {
	return targets[r.targetIndex]
}

func sanitizeName(name, fallback string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallback
	}
	runes := []rune(name)
	if len(runes) > maxNameLength {
		return string(runes[:maxNameLength])
	}
	return name
}

func (r *Room) addParticipant(name string, role Role) *Participant {
	fallback := "Player"
	if role == RoleHost {
		fallback = "Host"
	}

	p := &Participant{
		ID:       uuid.NewString(),
		Name:     sanitizeName(name, fallback),
		Role:     role,
		JoinedAt: time.Now(),
	}
	r.participants[p.ID] = p
	r.joinOrder = append(r.joinOrder, p.ID)
	return p
}

// removeParticipant drops the participant, their submission, and the
// architect assignment if it pointed at them. Absent ids are a no-op so
// disconnect races never raise.
func (r *Room) removeParticipant(id string) {
	if _, ok := r.participants[id]; !ok {
		return
	}
	delete(r.participants, id)
	delete(r.submissions, id)

	for i, pid := range r.joinOrder {
		if pid == id {
			r.joinOrder = append(r.joinOrder[:i], r.joinOrder[i+1:]...)
			break
		}
	}

	if r.architectID == id {
		r.architectID = ""
	}
}

// playerIDs returns player-role participant ids in join order.
func (r *Room) playerIDs() []string {
	ids := make([]string, 0, len(r.joinOrder))
	for _, pid := range r.joinOrder {
		if p, ok := r.participants[pid]; ok && p.Role == RolePlayer {
			ids = append(ids, pid)
		}
	}
	return ids
}

// assignNextArchitect rotates the architect through players in join order.
// With no current architect the first player is picked; with zero players
// nothing changes.
func (r *Room) assignNextArchitect() {
	ids := r.playerIDs()
	if len(ids) == 0 {
		return
	}

	if r.architectID == "" {
		r.architectID = ids[0]
		return
	}

	current := -1
	for i, id := range ids {
		if id == r.architectID {
			current = i
			break
		}
	}
	r.architectID = ids[(current+1)%len(ids)]
}

// applyRoundDefaults sets the alternating constraint/duration policy:
// even rounds are unconstrained and longer, odd rounds ban directional
// words and run shorter.
func (r *Room) applyRoundDefaults() {
	if r.roundIndex%2 == 0 {
		r.constraints = Constraints{BannedWords: []string{}, NoCoordinates: false}
		r.roundDurationSec = 180
	} else {
		r.constraints = Constraints{
			BannedWords:   []string{"left", "right", "up", "down"},
			NoCoordinates: true,
		}
		r.roundDurationSec = 150
	}
}

// startRound clears all submissions and opens a fresh building round.
// Callers must verify an architect is assigned first.
func (r *Room) startRound(now time.Time) {
	r.submissions = make(map[string]*Submission)
	r.phase = PhaseRound
	r.applyRoundDefaults()
	r.roundEndsAt = now.Add(time.Duration(r.roundDurationSec) * time.Second)
}

// setPhase moves to lobby/reveal/reflect directly. Entering round goes
// through startRound instead, so the deadline and submission reset always
// happen; the Builder routes that case.
func (r *Room) setPhase(phase Phase) {
	r.phase = phase
	if phase != PhaseRound {
		r.roundEndsAt = time.Time{}
	}
}

// nextRound advances to the following round's lobby: next target
// (wrapping), submissions cleared, policy re-applied for the new index.
func (r *Room) nextRound() {
	r.roundIndex++
	r.targetIndex = (r.targetIndex + 1) % len(targets)
	r.submissions = make(map[string]*Submission)
	r.phase = PhaseLobby
	r.roundEndsAt = time.Time{}
	r.applyRoundDefaults()
}

var (
	errNotInRound = errors.New("room is not in a round")
	errBadGrid    = errors.New("grid must be 5x5 over the palette")
)

// recordSubmission scores the grid against the current target and stores
// it keyed to the current round index, overwriting any earlier attempt.
func (r *Room) recordSubmission(participantID string, grid Grid, now time.Time) error {
	if r.phase != PhaseRound {
		return errNotInRound
	}
	if !grid.valid() {
		return errBadGrid
	}

	target := r.target().Grid
	r.submissions[participantID] = &Submission{
		RoundIndex:  r.roundIndex,
		Grid:        grid,
		Score:       scoreGrid(target, grid),
		Stats:       diffStats(target, grid),
		SubmittedAt: now,
	}
	return nil
}

// addRule appends a trimmed reflection rule, reporting whether anything
// was added.
func (r *Room) addRule(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	r.rules = append(r.rules, text)
	return true
}

func (r *Room) clearRules() {
	r.rules = []string{}
}
