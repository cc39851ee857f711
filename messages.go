package main

import "encoding/json"

// Wire envelopes are {type, payload}. Inbound payloads are decoded
// per-type, so a malformed payload only affects its own message; the
// connection survives.

const (
	msgCreateRoom   = "create_room"
	msgJoinRoom     = "join_room"
	msgHostAction   = "host_action"
	msgSubmitGrid   = "submit_grid"
	msgRequestState = "request_state"
	msgPingState    = "ping_state" // legacy alias for request_state

	msgRoomCreated = "room_created"
	msgJoined      = "joined"
	msgRoomState   = "room_state"
	msgError       = "error"
)

// Host actions carried inside host_action payloads.
const (
	actAssignArchitect = "assign_architect"
	actStartRound      = "start_round"
	actSetPhase        = "set_phase"
	actNextRound       = "next_round"
	actAddRule         = "add_rule"
	actClearRules      = "clear_rules"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type createRoomPayload struct {
	Name string `json:"name"`
}

type joinRoomPayload struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type hostActionPayload struct {
	HostKey string `json:"hostKey"`
	Action  string `json:"action"`
	Phase   Phase  `json:"phase,omitempty"` // set_phase
	Text    string `json:"text,omitempty"`  // add_rule
}

type submitGridPayload struct {
	Grid Grid `json:"grid"`
}

type roomCreatedPayload struct {
	Code          string `json:"code"`
	HostKey       string `json:"hostKey"`
	ParticipantID string `json:"participantId"`
}

type joinedPayload struct {
	ParticipantID string `json:"participantId"`
	Code          string `json:"code"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func errorMessage(message string) outboundMessage {
	return outboundMessage{
		Type:    msgError,
		Payload: errorPayload{Message: message},
	}
}
