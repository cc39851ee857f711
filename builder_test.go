package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBuilder() *Builder {
	return newBuilder(&Config{roomTimeout: time.Hour})
}

func testClient(b *Builder) *Client {
	c := &Client{send: make(chan outboundMessage, 32)}
	b.register(c)
	return c
}

func inbound(t *testing.T, msgType string, payload any) envelope {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return envelope{Type: msgType, Payload: raw}
}

// drain empties a client's send buffer without blocking.
func drain(c *Client) []outboundMessage {
	var out []outboundMessage
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func lastOfType(msgs []outboundMessage, msgType string) (outboundMessage, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i], true
		}
	}
	return outboundMessage{}, false
}

func createTestRoom(t *testing.T, b *Builder, hc *Client) roomCreatedPayload {
	t.Helper()

	b.handleMessage(hc, inbound(t, msgCreateRoom, createRoomPayload{Name: "Lead"}))

	msg, ok := lastOfType(drain(hc), msgRoomCreated)
	require.True(t, ok)
	created, ok := msg.Payload.(roomCreatedPayload)
	require.True(t, ok)
	return created
}

func joinTestRoom(t *testing.T, b *Builder, c *Client, code, name string) joinedPayload {
	t.Helper()

	b.handleMessage(c, inbound(t, msgJoinRoom, joinRoomPayload{Code: code, Name: name}))

	msg, ok := lastOfType(drain(c), msgJoined)
	require.True(t, ok)
	joined, ok := msg.Payload.(joinedPayload)
	require.True(t, ok)
	return joined
}

func TestCreateRoomBindsHost(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)

	created := createTestRoom(t, b, hc)

	assert.Len(t, created.Code, roomCodeLength)
	assert.Len(t, created.HostKey, 32)
	assert.Equal(t, created.Code, hc.roomCode)
	assert.Equal(t, created.ParticipantID, hc.participantID)

	room := b.rooms[created.Code]
	require.NotNil(t, room)
	assert.Equal(t, RoleHost, room.participants[created.ParticipantID].Role)
}

func TestJoinRoomUnknownCode(t *testing.T) {
	b := testBuilder()
	c := testClient(b)

	b.handleMessage(c, inbound(t, msgJoinRoom, joinRoomPayload{Code: "ZZZZ", Name: "Anna"}))

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, msgError, msgs[0].Type)
	assert.Empty(t, c.roomCode)
}

func TestJoinRoomNormalizesCode(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	lowered := " " + created.Code + " "
	joined := joinTestRoom(t, b, pc, lowered, "Anna")

	assert.Equal(t, created.Code, joined.Code)
	assert.Equal(t, created.Code, pc.roomCode)
}

func TestHostActionRejectedForNonHost(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joinTestRoom(t, b, pc, created.Code, "Anna")

	room := b.rooms[created.Code]
	before := room.phase

	// Even with the real key, a player-role caller is denied.
	b.handleMessage(pc, inbound(t, msgHostAction, hostActionPayload{
		HostKey: created.HostKey,
		Action:  actStartRound,
	}))

	msg, ok := lastOfType(drain(pc), msgError)
	require.True(t, ok)
	assert.Equal(t, "Host authorization failed", msg.Payload.(errorPayload).Message)
	assert.Equal(t, before, room.phase)
}

func TestHostActionRejectedForWrongKey(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{
		HostKey: "bogus",
		Action:  actNextRound,
	}))

	_, ok := lastOfType(drain(hc), msgError)
	assert.True(t, ok)
	assert.Equal(t, 0, b.rooms[created.Code].roundIndex)
}

func TestStartRoundRequiresArchitect(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joinTestRoom(t, b, pc, created.Code, "Anna")

	b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{
		HostKey: created.HostKey,
		Action:  actStartRound,
	}))

	msg, ok := lastOfType(drain(hc), msgError)
	require.True(t, ok)
	assert.Equal(t, "Assign an architect first", msg.Payload.(errorPayload).Message)
	assert.Equal(t, PhaseLobby, b.rooms[created.Code].phase)
}

func TestSetPhaseRoundGoesThroughStartRound(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joinTestRoom(t, b, pc, created.Code, "Anna")

	hostAction := func(action string, phase Phase) {
		b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{
			HostKey: created.HostKey,
			Action:  action,
			Phase:   phase,
		}))
	}

	// No architect: set_phase{round} is denied like start_round.
	hostAction(actSetPhase, PhaseRound)
	_, ok := lastOfType(drain(hc), msgError)
	assert.True(t, ok)

	hostAction(actAssignArchitect, "")
	hostAction(actSetPhase, PhaseRound)

	room := b.rooms[created.Code]
	assert.Equal(t, PhaseRound, room.phase)
	assert.False(t, room.roundEndsAt.IsZero())
}

func TestFullSessionScenario(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joined := joinTestRoom(t, b, pc, created.Code, "Anna")

	hostAction := func(action string) {
		b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{
			HostKey: created.HostKey,
			Action:  action,
		}))
	}

	// Anna is the only player, so she becomes architect.
	hostAction(actAssignArchitect)
	room := b.rooms[created.Code]
	require.Equal(t, joined.ParticipantID, room.architectID)

	start := time.Now()
	hostAction(actStartRound)
	require.Equal(t, PhaseRound, room.phase)
	assert.WithinDuration(t, start.Add(180*time.Second), room.roundEndsAt, 5*time.Second)

	drain(hc)
	drain(pc)

	b.handleMessage(pc, inbound(t, msgSubmitGrid, submitGridPayload{Grid: room.target().Grid}))

	require.Contains(t, room.submissions, joined.ParticipantID)
	assert.Equal(t, 100, room.submissions[joined.ParticipantID].Score)

	// Both viewers got fresh snapshots from the submission broadcast.
	hostMsg, ok := lastOfType(drain(hc), msgRoomState)
	require.True(t, ok)
	annaMsg, ok := lastOfType(drain(pc), msgRoomState)
	require.True(t, ok)
	assert.Equal(t, 1, hostMsg.Payload.(RoomStateView).Scores.Count)
	assert.NotNil(t, annaMsg.Payload.(RoomStateView).Target.Grid) // architect sees it

	// Deadline passes; the sweep forces reveal through setPhase.
	b.sweep(time.Now().Add(181 * time.Second))

	assert.Equal(t, PhaseReveal, room.phase)
	assert.True(t, room.roundEndsAt.IsZero())

	hostMsg, ok = lastOfType(drain(hc), msgRoomState)
	require.True(t, ok)
	view := hostMsg.Payload.(RoomStateView)
	assert.Equal(t, PhaseReveal, view.Phase)
	require.NotNil(t, view.Scores.Best)
	assert.Equal(t, 100, view.Scores.Best.Score)
	assert.NotNil(t, view.Scores.BestGrid)
}

func TestSubmitGridIgnoredOutsideRound(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joined := joinTestRoom(t, b, pc, created.Code, "Anna")
	drain(pc)

	b.handleMessage(pc, inbound(t, msgSubmitGrid, submitGridPayload{Grid: emptyGrid()}))

	assert.NotContains(t, b.rooms[created.Code].submissions, joined.ParticipantID)
	assert.Empty(t, drain(pc))
}

func TestSubmitGridUnboundConnection(t *testing.T) {
	b := testBuilder()
	c := testClient(b)

	b.handleMessage(c, inbound(t, msgSubmitGrid, submitGridPayload{Grid: emptyGrid()}))

	msgs := drain(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, msgError, msgs[0].Type)
}

func TestRequestStateRepliesToRequesterOnly(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joinTestRoom(t, b, pc, created.Code, "Anna")
	drain(hc)
	drain(pc)

	b.handleMessage(pc, inbound(t, msgRequestState, struct{}{}))

	msgs := drain(pc)
	require.Len(t, msgs, 1)
	assert.Equal(t, msgRoomState, msgs[0].Type)
	assert.Empty(t, drain(hc))

	// The legacy alias behaves identically.
	b.handleMessage(pc, inbound(t, msgPingState, struct{}{}))
	msgs = drain(pc)
	require.Len(t, msgs, 1)
	assert.Equal(t, msgRoomState, msgs[0].Type)
}

func TestDisconnectCleansUpParticipant(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joined := joinTestRoom(t, b, pc, created.Code, "Anna")

	hostAction := func(action string) {
		b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{
			HostKey: created.HostKey,
			Action:  action,
		}))
	}
	hostAction(actAssignArchitect)
	hostAction(actStartRound)
	drain(hc)

	// Architect drops mid-round.
	b.disconnect(pc)

	room := b.rooms[created.Code]
	assert.NotContains(t, room.participants, joined.ParticipantID)
	assert.Empty(t, room.architectID)

	// Remaining viewers were told immediately.
	msg, ok := lastOfType(drain(hc), msgRoomState)
	require.True(t, ok)
	view := msg.Payload.(RoomStateView)
	assert.Nil(t, view.ArchitectID)
	assert.Len(t, view.Participants, 1)

	// A second disconnect (close race) is harmless.
	assert.NotPanics(t, func() {
		b.disconnect(pc)
	})
}

func TestMalformedMessagesIgnored(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)
	drain(hc)

	assert.NotPanics(t, func() {
		b.handleMessage(hc, envelope{Type: "bogus_type"})
		b.handleMessage(hc, envelope{Type: msgSubmitGrid, Payload: json.RawMessage(`{"grid": 42}`)})
		b.handleMessage(hc, envelope{Type: msgHostAction, Payload: json.RawMessage(`"not an object"`)})
	})

	assert.Empty(t, drain(hc))
	assert.Equal(t, PhaseLobby, b.rooms[created.Code].phase)
}

func TestReflectionRuleActions(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)
	room := b.rooms[created.Code]

	ruleAction := func(action, text string) {
		b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{
			HostKey: created.HostKey,
			Action:  action,
			Text:    text,
		}))
	}

	ruleAction(actAddRule, " speak in turns ")
	ruleAction(actAddRule, "")
	assert.Equal(t, []string{"speak in turns"}, room.rules)

	ruleAction(actClearRules, "")
	assert.Empty(t, room.rules)
}

func TestSweepReapsIdleEmptyRooms(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	// Still connected: never reaped, no matter how old.
	b.sweep(time.Now().Add(24 * time.Hour))
	assert.Contains(t, b.rooms, created.Code)

	b.disconnect(hc)

	// Empty but within the grace window.
	b.sweep(time.Now().Add(30 * time.Minute))
	assert.Contains(t, b.rooms, created.Code)

	// Empty and past it.
	b.sweep(time.Now().Add(2 * time.Hour))
	assert.NotContains(t, b.rooms, created.Code)
}

func TestSweepExpiresOnlyOverdueRounds(t *testing.T) {
	b := testBuilder()
	hc := testClient(b)
	created := createTestRoom(t, b, hc)

	pc := testClient(b)
	joinTestRoom(t, b, pc, created.Code, "Anna")

	b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{HostKey: created.HostKey, Action: actAssignArchitect}))
	b.handleMessage(hc, inbound(t, msgHostAction, hostActionPayload{HostKey: created.HostKey, Action: actStartRound}))

	room := b.rooms[created.Code]
	require.Equal(t, PhaseRound, room.phase)

	b.sweep(time.Now())
	assert.Equal(t, PhaseRound, room.phase)

	b.sweep(room.roundEndsAt.Add(time.Millisecond))
	assert.Equal(t, PhaseReveal, room.phase)
}
