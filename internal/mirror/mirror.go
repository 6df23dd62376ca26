// Package mirror maintains a client-side view of the server by folding the
// event stream into local state. Clients render from this state instead of
// interpreting raw events themselves.
package mirror

import (
	"fmt"

	"github.com/dkeye/mafia/internal/domain"
)

// MaxMessageHistory bounds the chat log; the oldest lines fall off.
const MaxMessageHistory = 200

// State is everything a client knows about the server.
type State struct {
	Clients  []domain.ClientInfo
	Game     *domain.GameInfo
	Messages []domain.Message
}

func NewState() *State {
	return &State{}
}

// ClientName resolves an id to its display name, falling back to the id
// itself for clients that already left.
func (s *State) ClientName(id domain.ClientID) string {
	for _, c := range s.Clients {
		if c.ID == id {
			return c.Name
		}
	}
	return fmt.Sprintf("client %d", id)
}

// ApplyEvent folds one event into the state. Events must be applied in the
// order the server delivered them.
func (s *State) ApplyEvent(ev domain.Event) {
	switch ev := ev.(type) {
	case *domain.SetServerInfo:
		s.Clients = append([]domain.ClientInfo(nil), ev.Info.ConnectedClients...)
		s.Game = cloneGameInfo(ev.Info.ActiveGame)

	case *domain.SetGame:
		info := ev.Info
		s.Game = cloneGameInfo(&info)

	case *domain.EndGame:
		s.Game = nil

	case *domain.ClientConnected:
		for i, c := range s.Clients {
			if c.ID == ev.Client.ID {
				s.Clients[i] = ev.Client
				return
			}
		}
		s.Clients = append(s.Clients, ev.Client)

	case *domain.ClientDisconnected:
		for i, c := range s.Clients {
			if c.ID == ev.Client {
				s.Clients = append(s.Clients[:i], s.Clients[i+1:]...)
				break
			}
		}

	case *domain.MessageReceived:
		s.pushMessage(ev.Message)

	case *domain.VoteIssued:
		if s.Game != nil {
			s.Game.Votes[ev.Voter] = ev.Target
		}

	case *domain.FailedVote:
		verdict := "The town could not decide who to hang."
		if ev.Cycle == domain.CycleNight {
			verdict = "The mafia could not decide who to kill."
		}
		s.pushSystem(ev.Channel, verdict)

	case *domain.SetCycle:
		if s.Game != nil {
			s.Game.CycleStartUnixSecs = ev.StartTimeUnixSecs
			s.Game.CycleDurationSecs = ev.DurationSecs
			s.Game.CurrentCycle = ev.Cycle
			s.Game.DayNum = ev.DayNum
			s.Game.Votes = make(map[domain.ClientID]*domain.ClientID)
		}
		s.pushSystem(domain.ChannelPublic, fmt.Sprintf("It is now %s %d.", ev.Cycle, ev.DayNum))

	case *domain.PlayerKilled:
		if s.Game != nil {
			s.Game.PlayerStatus[ev.Player] = domain.StatusDead
		}
		when := "that day"
		if ev.Cycle == domain.CycleNight {
			when = "the next morning"
		}
		s.pushSystem(domain.ChannelPublic, fmt.Sprintf("%s %s %s.", s.ClientName(ev.Player), ev.DeathMessage, when))

	case *domain.PlayerInvestigated:
		if s.Game != nil && ev.Allegiance == domain.AllegianceMafia {
			s.Game.PlayerToRole[ev.Target] = domain.RoleMafia
		}
		s.pushSystem(domain.ChannelSpectator,
			fmt.Sprintf("%s is aligned with the %s.", s.ClientName(ev.Target), ev.Allegiance))

	case *domain.GameWon:
		if s.Game != nil {
			side := ev.Side
			s.Game.Winner = &side
			s.Game.PlayerToRole = make(map[domain.ClientID]domain.SpecialRole, len(ev.PlayerToRole))
			for id, role := range ev.PlayerToRole {
				s.Game.PlayerToRole[id] = role
			}
		}
		s.pushSystem(domain.ChannelPublic, fmt.Sprintf("The %s have won the game.", ev.Side))
	}
}

func (s *State) pushSystem(channel domain.EventChannel, contents string) {
	s.pushMessage(domain.Message{
		Channel:  channel,
		Contents: contents,
		From:     domain.SystemEntity(),
	})
}

func (s *State) pushMessage(msg domain.Message) {
	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > MaxMessageHistory {
		s.Messages = s.Messages[len(s.Messages)-MaxMessageHistory:]
	}
}

// cloneGameInfo deep-copies a snapshot so later folds never mutate the
// event's payload.
func cloneGameInfo(info *domain.GameInfo) *domain.GameInfo {
	if info == nil {
		return nil
	}

	out := *info
	out.PlayerToRole = make(map[domain.ClientID]domain.SpecialRole, len(info.PlayerToRole))
	for id, role := range info.PlayerToRole {
		out.PlayerToRole[id] = role
	}
	out.PlayerStatus = make(map[domain.ClientID]domain.PlayerStatus, len(info.PlayerStatus))
	for id, st := range info.PlayerStatus {
		out.PlayerStatus[id] = st
	}
	out.Votes = make(map[domain.ClientID]*domain.ClientID, len(info.Votes))
	for voter, target := range info.Votes {
		out.Votes[voter] = target
	}
	if info.Winner != nil {
		w := *info.Winner
		out.Winner = &w
	}
	return &out
}
