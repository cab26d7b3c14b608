package websocket

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/darts-scorer/internal/match"
	"github.com/darts-scorer/internal/session"
)

// Message types
const (
	TypeWatch        = "watch"
	TypeThrow        = "throw"
	TypeDigit        = "digit"
	TypeBackspace    = "backspace"
	TypeEnter        = "enter"
	TypeBack         = "back"
	TypeConfirmLeg   = "confirmLeg"
	TypeCancelLeg    = "cancelLeg"
	TypeConfirmMatch = "confirmMatch"
	TypeCancelMatch  = "cancelMatch"
	TypeState        = "state"
	TypeInput        = "input"
	TypeOutcome      = "outcome"
	TypeError        = "error"
)

const actionTimeout = 5 * time.Second

// Message represents an outgoing websocket message
type Message struct {
	Type    string        `json:"type"`
	MatchID string        `json:"matchId,omitempty"`
	State   *match.State  `json:"state,omitempty"`
	Input   *string       `json:"input,omitempty"`
	Outcome match.Outcome `json:"outcome,omitempty"`
	Message string        `json:"message,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type    string `json:"type"`
	MatchID string `json:"matchId,omitempty"`
	Score   *int   `json:"score,omitempty"`
	Digit   int    `json:"digit,omitempty"`
	Darts   int    `json:"darts,omitempty"`
}

// Handler processes websocket messages
type Handler struct {
	hub     *Hub
	manager *session.Manager
}

// NewHandler creates a new message handler
func NewHandler(hub *Hub, manager *session.Manager) *Handler {
	return &Handler{
		hub:     hub,
		manager: manager,
	}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug().Err(err).Str("client", client.id).Msg("invalid websocket message")
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	if msg.Type == TypeWatch {
		h.handleWatch(client, msg.MatchID)
		return
	}

	matchID := h.hub.Watching(client)
	if matchID == "" {
		client.sendMessage(Message{Type: TypeError, Message: "Not watching a match"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	var err error
	switch msg.Type {
	case TypeThrow:
		if msg.Score == nil {
			client.sendMessage(Message{Type: TypeError, Message: "score required"})
			return
		}
		var outcome match.Outcome
		if _, outcome, err = h.manager.Throw(ctx, matchID, *msg.Score); err == nil {
			client.sendMessage(Message{Type: TypeOutcome, MatchID: matchID, Outcome: outcome})
		}
	case TypeDigit:
		var input string
		input, err = h.manager.Press(matchID, msg.Digit)
		client.sendMessage(Message{Type: TypeInput, MatchID: matchID, Input: &input})
	case TypeBackspace:
		var input string
		if input, err = h.manager.Backspace(matchID); err == nil {
			client.sendMessage(Message{Type: TypeInput, MatchID: matchID, Input: &input})
		}
	case TypeEnter:
		var outcome match.Outcome
		if _, outcome, err = h.manager.Submit(ctx, matchID); err == nil {
			client.sendMessage(Message{Type: TypeOutcome, MatchID: matchID, Outcome: outcome})
		}
	case TypeBack:
		_, err = h.manager.Back(ctx, matchID)
	case TypeConfirmLeg:
		_, err = h.manager.ConfirmLeg(ctx, matchID, msg.Darts)
	case TypeCancelLeg:
		_, err = h.manager.CancelLeg(ctx, matchID)
	case TypeConfirmMatch:
		_, err = h.manager.ConfirmMatch(ctx, matchID)
	case TypeCancelMatch:
		_, err = h.manager.CancelMatch(ctx, matchID)
	default:
		client.sendMessage(Message{Type: TypeError, Message: "Unknown message type"})
		return
	}

	if err != nil {
		log.Debug().Err(err).Str("matchId", matchID).Str("type", msg.Type).Msg("websocket action rejected")
		client.sendMessage(Message{Type: TypeError, MatchID: matchID, Message: err.Error()})
	}
}

// handleWatch subscribes the client and sends it the current state
func (h *Handler) handleWatch(client *Client, matchID string) {
	g, err := h.manager.Get(matchID)
	if err != nil {
		client.sendMessage(Message{Type: TypeError, MatchID: matchID, Message: err.Error()})
		return
	}

	h.hub.Watch(matchID, client)
	s := g.GetState()
	client.sendMessage(Message{Type: TypeState, MatchID: matchID, State: &s})
}
