// Package wire encodes events into the tagged JSON envelopes carried over
// the websocket and stored by the archive.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/mafia/internal/domain"
)

// Envelope is the frame format: a type tag plus the variant's payload.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	TypeSetServerInfo      = "set_server_info"
	TypeSetGame            = "set_game"
	TypeEndGame            = "end_game"
	TypeClientConnected    = "client_connected"
	TypeClientDisconnected = "client_disconnected"
	TypeMessageReceived    = "message_received"
	TypeVoteIssued         = "vote_issued"
	TypeFailedVote         = "failed_vote"
	TypeSetCycle           = "set_cycle"
	TypePlayerKilled       = "player_killed"
	TypePlayerInvestigated = "player_investigated"
	TypeGameWon            = "game_won"
)

// TypeOf returns the wire tag for the event.
func TypeOf(ev domain.Event) string {
	switch ev.(type) {
	case *domain.SetServerInfo:
		return TypeSetServerInfo
	case *domain.SetGame:
		return TypeSetGame
	case *domain.EndGame:
		return TypeEndGame
	case *domain.ClientConnected:
		return TypeClientConnected
	case *domain.ClientDisconnected:
		return TypeClientDisconnected
	case *domain.MessageReceived:
		return TypeMessageReceived
	case *domain.VoteIssued:
		return TypeVoteIssued
	case *domain.FailedVote:
		return TypeFailedVote
	case *domain.SetCycle:
		return TypeSetCycle
	case *domain.PlayerKilled:
		return TypePlayerKilled
	case *domain.PlayerInvestigated:
		return TypePlayerInvestigated
	case *domain.GameWon:
		return TypeGameWon
	}
	panic(fmt.Sprintf("unhandled event %T", ev))
}

// Encode marshals the event into its tagged envelope.
func Encode(ev domain.Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", TypeOf(ev), err)
	}
	return json.Marshal(Envelope{Type: TypeOf(ev), Data: data})
}

// Decode unmarshals a tagged envelope back into its event variant. Unknown
// tags are an error.
func Decode(raw []byte) (domain.Event, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	var ev domain.Event
	switch env.Type {
	case TypeSetServerInfo:
		ev = &domain.SetServerInfo{}
	case TypeSetGame:
		ev = &domain.SetGame{}
	case TypeEndGame:
		ev = &domain.EndGame{}
	case TypeClientConnected:
		ev = &domain.ClientConnected{}
	case TypeClientDisconnected:
		ev = &domain.ClientDisconnected{}
	case TypeMessageReceived:
		ev = &domain.MessageReceived{}
	case TypeVoteIssued:
		ev = &domain.VoteIssued{}
	case TypeFailedVote:
		ev = &domain.FailedVote{}
	case TypeSetCycle:
		ev = &domain.SetCycle{}
	case TypePlayerKilled:
		ev = &domain.PlayerKilled{}
	case TypePlayerInvestigated:
		ev = &domain.PlayerInvestigated{}
	case TypeGameWon:
		ev = &domain.GameWon{}
	default:
		return nil, fmt.Errorf("unknown event type %q", env.Type)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
	}
	return ev, nil
}
