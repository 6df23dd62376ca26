package core

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/domain"
)

// ServerConfig holds the server-wide settings.
type ServerConfig struct {
	// MaxClientInactiveTime is how long a client can go without making a
	// request before the ticker evicts it.
	MaxClientInactiveTime time.Duration
	// RandomizeDeathMessage substitutes a random pool entry into each
	// PlayerKilled at fan-out time.
	RandomizeDeathMessage bool
}

// EventSink observes every fanned-out event together with its recipient
// set. Sinks are observational only; they cannot fail an operation.
type EventSink interface {
	Record(ev domain.Event, to domain.ClientSet)
}

// Server is the facade over the client registry and the optional game. One
// writer lock serializes every mutation; events produced inside an
// operation are appended to recipient inboxes before the lock is released.
type Server struct {
	mu      sync.RWMutex
	config  ServerConfig
	clients *Registry
	game    *Game
	rng     Rand
	sink    EventSink

	now func() time.Time
}

func NewServer(config ServerConfig) *Server {
	return &Server{
		config:  config,
		clients: NewRegistry(),
		rng:     NewSeededRand(time.Now().UnixNano()),
		now:     time.Now,
	}
}

// SetEventSink attaches an observer for fanned-out events. Pass nil to
// detach.
func (s *Server) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink = sink
}

// inActiveGame reports whether a game exists and has not been won.
func (s *Server) inActiveGame() bool {
	return s.game != nil && s.game.Winner() == nil
}

// activeGame returns the game only while it is still undecided.
func (s *Server) activeGame() (*Game, error) {
	if !s.inActiveGame() {
		return nil, ErrNoGameInProgress
	}
	return s.game, nil
}

// InActiveGame reports whether the server has an active, undecided game.
func (s *Server) InActiveGame() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inActiveGame()
}

// StartGame purges stale clients, deals roles among the remaining ones, and
// hands every client a personalized game snapshot.
func (s *Server) StartGame(config GameConfig, rng Rand) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inActiveGame() {
		return ErrGameInProgress
	}

	s.purgeClients()

	game, err := StartGame(config, s.clients.AllClientIDs(), rng)
	if err != nil {
		return err
	}
	game.now = s.now
	game.cycleStart = s.now()
	s.game = game

	for _, id := range s.clients.AllClientIDs().IDs() {
		info := s.gameInfoFor(id)
		s.clients.SendEvent(domain.SetOf(id), &domain.SetGame{Info: *info})
	}

	return nil
}

// EndGame tears down the current game, won or not.
func (s *Server) EndGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game == nil {
		return ErrNoGameInProgress
	}
	s.game = nil

	s.sendEvent(&domain.EndGame{})
	return nil
}

// DoTick advances the game clock, or purges stale clients when no game
// exists.
func (s *Server) DoTick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.game != nil {
		for _, ev := range s.game.PollEndCycle() {
			s.sendEvent(ev)
		}
		return
	}

	s.purgeClients()
}

// purgeClients evicts disconnected and inactive clients, announcing the
// ones lost to inactivity.
func (s *Server) purgeClients() {
	for _, id := range s.clients.Purge(s.config.MaxClientInactiveTime) {
		s.sendEvent(&domain.ClientDisconnected{Client: id})
	}
}

// ConnectClient registers (or re-registers) a client. The new client gets a
// tailored SetServerInfo; everyone else learns about the connection.
func (s *Server) ConnectClient(name string) (domain.ClientID, domain.SessionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, token, err := s.clients.Connect(name)
	if err != nil {
		return 0, domain.SessionToken{}, err
	}

	info, err := s.clients.ClientInfo(id)
	if err != nil {
		return 0, domain.SessionToken{}, err
	}

	s.sendEvent(&domain.ClientConnected{Client: info})
	s.clients.SendEvent(domain.SetOf(id), &domain.SetServerInfo{Info: domain.ServerInfo{
		ConnectedClients: s.clients.AllClientInfo(),
		ActiveGame:       s.gameInfoFor(id),
	}})

	return id, token, nil
}

// DisconnectClient handles a client's own disconnect request.
func (s *Server) DisconnectClient(token domain.SessionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.clients.Auth(token)
	if err != nil {
		return err
	}
	return s.disconnectLocked(id)
}

// ForceDisconnectClient disconnects a client by id. Intended as an admin
// API.
func (s *Server) ForceDisconnectClient(id domain.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnectLocked(id)
}

func (s *Server) disconnectLocked(id domain.ClientID) error {
	if err := s.clients.Disconnect(id); err != nil {
		return err
	}
	s.sendEvent(&domain.ClientDisconnected{Client: id})
	return nil
}

// BroadcastMessage sends a system message to every client. Intended as an
// admin API.
func (s *Server) BroadcastMessage(contents string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sendEvent(&domain.MessageReceived{Message: domain.Message{
		Channel:  domain.ChannelPublic,
		Contents: contents,
		From:     domain.SystemEntity(),
	}})
}

// SendMessage routes a client's chat line to the channel its game state
// dictates: spectators and the dead talk among themselves, days are public,
// mafia nights are private, and villagers whisper into the void at night.
func (s *Server) SendMessage(token domain.SessionToken, contents string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.clients.Auth(token)
	if err != nil {
		return err
	}

	channel := domain.ChannelPublic
	if game, err := s.activeGame(); err == nil {
		switch {
		case !isAlivePlayer(game, id):
			channel = domain.ChannelSpectator
		case game.Cycle() == domain.CycleDay:
			channel = domain.ChannelPublic
		case game.AllegianceOf(id) == domain.AllegianceMafia:
			channel = domain.ChannelMafia
		default:
			channel = domain.ChannelSpectator
		}
	}

	s.sendEvent(&domain.MessageReceived{Message: domain.Message{
		Channel:  channel,
		Contents: contents,
		From:     domain.ClientEntity(id),
	}})
	return nil
}

func isAlivePlayer(game *Game, id domain.ClientID) bool {
	st, ok := game.Status(id)
	return ok && st == domain.StatusAlive
}

// AuthClient resolves a session token without any side effect beyond
// refreshing the client's liveness.
func (s *Server) AuthClient(token domain.SessionToken) (domain.ClientID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients.Auth(token)
}

// TakeEvents drains the caller's inbox.
func (s *Server) TakeEvents(token domain.SessionToken) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.clients.Auth(token)
	if err != nil {
		return nil, err
	}
	return s.clients.TakeEvents(id), nil
}

// CastVote records the caller's vote (nil target = explicit skip), fans out
// the vote event, and then polls for cycle end. The VoteIssued event always
// precedes any cycle-end events.
func (s *Server) CastVote(token domain.SessionToken, target *domain.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.clients.Auth(token)
	if err != nil {
		return err
	}

	game, err := s.activeGame()
	if err != nil {
		return err
	}

	if err := game.CastVote(id, target); err != nil {
		return err
	}

	channel := domain.ChannelSpectator
	switch {
	case game.Cycle() == domain.CycleDay:
		channel = domain.ChannelPublic
	case game.AllegianceOf(id) == domain.AllegianceMafia:
		channel = domain.ChannelMafia
	}

	s.sendEvent(&domain.VoteIssued{Voter: id, Target: target, Channel: channel})
	for _, ev := range game.PollEndCycle() {
		s.sendEvent(ev)
	}
	return nil
}

// channelRecipients derives the recipient set for a channel. The actor, if
// any, always sees their own output.
func (s *Server) channelRecipients(actor *domain.ClientID, channel domain.EventChannel) domain.ClientSet {
	all := s.clients.AllClientIDs()

	var to domain.ClientSet
	switch channel {
	case domain.ChannelPublic:
		to = all
	case domain.ChannelMafia:
		if s.game != nil {
			to = all.Diff(s.game.Players(func(st domain.PlayerStatus, _ *domain.SpecialRole, a domain.Allegiance) bool {
				return st == domain.StatusAlive && a == domain.AllegianceVillagers
			}))
		}
	case domain.ChannelSpectator:
		to = all
		if s.game != nil {
			to = all.Diff(s.game.Players(IsAlive))
		}
	}

	if actor != nil {
		to.Insert(*actor)
	}
	return to
}

// eventVisibility returns the set of clients entitled to see the event.
// SetServerInfo and SetGame are tailored per recipient and never flow
// through here.
func (s *Server) eventVisibility(ev domain.Event) domain.ClientSet {
	all := s.clients.AllClientIDs()

	switch ev := ev.(type) {
	case *domain.SetServerInfo, *domain.SetGame:
		panic("tailored events have no shared visibility")
	case *domain.EndGame:
		return all
	case *domain.ClientConnected:
		all.Remove(ev.Client.ID)
		return all
	case *domain.ClientDisconnected:
		all.Remove(ev.Client)
		return all
	case *domain.MessageReceived:
		if ev.Message.From.System {
			return all
		}
		actor := ev.Message.From.Client
		return s.channelRecipients(&actor, ev.Message.Channel)
	case *domain.VoteIssued:
		return s.channelRecipients(&ev.Voter, ev.Channel)
	case *domain.FailedVote:
		return s.channelRecipients(nil, ev.Channel)
	case *domain.PlayerKilled:
		return all
	case *domain.SetCycle:
		return all
	case *domain.PlayerInvestigated:
		return s.channelRecipients(&ev.Actor, domain.ChannelSpectator)
	case *domain.GameWon:
		return all
	}
	panic(fmt.Sprintf("unhandled event %T", ev))
}

// sendEvent computes visibility, applies per-send tailoring, and fans the
// event out. Tailoring builds a fresh event rather than mutating one that
// may already sit in inboxes.
func (s *Server) sendEvent(ev domain.Event) {
	to := s.eventVisibility(ev)

	if killed, ok := ev.(*domain.PlayerKilled); ok && s.config.RandomizeDeathMessage {
		pool := dayDeathMessages
		if killed.Cycle == domain.CycleNight {
			pool = nightDeathMessages
		}
		ev = &domain.PlayerKilled{
			Player:       killed.Player,
			Cycle:        killed.Cycle,
			DeathMessage: pool[s.rng.Intn(len(pool))],
		}
	}

	s.clients.SendEvent(to, ev)
	if s.sink != nil {
		s.sink.Record(ev, to)
	}
}

// gameInfoFor builds the game snapshot as the given client is entitled to
// see it, filtering votes and roles per the client's status, role, and the
// current cycle.
func (s *Server) gameInfoFor(id domain.ClientID) *domain.GameInfo {
	if s.game == nil {
		return nil
	}
	game := s.game

	info := &domain.GameInfo{
		CycleStartUnixSecs: game.CycleStart().Unix(),
		CycleDurationSecs:  int64(game.CycleDuration().Seconds()),
		CurrentCycle:       game.Cycle(),
		DayNum:             game.DayNum(),
		PlayerToRole:       make(map[domain.ClientID]domain.SpecialRole),
		PlayerStatus:       game.PlayerStatuses(),
		Votes:              make(map[domain.ClientID]*domain.ClientID),
		Winner:             game.Winner(),
	}

	status, playing := game.Status(id)
	role, hasRole := game.Role(id)
	spectating := !playing || status == domain.StatusDead

	switch {
	case spectating:
		// Spectators and the dead see every vote.
		for voter, target := range game.Votes() {
			info.Votes[voter] = target
		}
	case game.Cycle() == domain.CycleDay:
		// Day votes are public knowledge.
		for voter, target := range game.Votes() {
			info.Votes[voter] = target
		}
	case hasRole && role == domain.RoleMafia:
		// Mafia see each other's night votes.
		for voter, target := range game.Votes() {
			if game.AllegianceOf(voter) == domain.AllegianceMafia {
				info.Votes[voter] = target
			}
		}
	case hasRole:
		// Other special roles see only their own night vote.
		if target, ok := game.Votes()[id]; ok {
			info.Votes[id] = target
		}
	}

	switch {
	case spectating:
		info.PlayerToRole = game.PlayerRoles()
	case hasRole && role == domain.RoleMafia:
		for player, r := range game.PlayerRoles() {
			if r == domain.RoleMafia {
				info.PlayerToRole[player] = r
			}
		}
	case hasRole:
		info.PlayerToRole[id] = role
	}

	return info
}

// Ticker is the handle for the background tick loop.
type Ticker struct {
	stop atomic.Bool
	done chan struct{}
}

// Shutdown asks the loop to stop. The in-flight tick completes.
func (t *Ticker) Shutdown() {
	t.stop.Store(true)
}

// Done is closed once the loop has exited.
func (t *Ticker) Done() <-chan struct{} {
	return t.done
}

// StartTicker runs DoTick every interval in a background goroutine until
// the returned handle is shut down.
func (s *Server) StartTicker(interval time.Duration) *Ticker {
	t := &Ticker{done: make(chan struct{})}

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info().Str("module", "core.server").Dur("interval", interval).Msg("ticker started")
		for !t.stop.Load() {
			<-ticker.C
			s.DoTick()
		}
		log.Info().Str("module", "core.server").Msg("ticker stopped")
	}()

	return t
}
