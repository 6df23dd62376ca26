package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/domain"
)

// client is the registry's record for one connection slot.
type client struct {
	info         domain.ClientInfo
	token        domain.SessionToken
	lastActive   time.Time
	disconnected bool
	inbox        []domain.Event
}

// Registry owns the set of connected clients: their session tokens, inboxes,
// liveness timestamps, and the bounded id pool. It is not safe for
// concurrent use on its own; the server facade serializes access under its
// lock.
type Registry struct {
	clients   map[domain.ClientID]*client
	nameToID  map[string]domain.ClientID
	tokenToID map[domain.SessionToken]domain.ClientID
	used      domain.ClientSet

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		clients:   make(map[domain.ClientID]*client),
		nameToID:  make(map[string]domain.ClientID),
		tokenToID: make(map[domain.SessionToken]domain.ClientID),
		now:       time.Now,
	}
}

// Connect registers a client under the given name. A name held by a
// disconnected client reclaims that client's id with a fresh session token
// and an empty inbox; a name held by a connected client is rejected.
func (r *Registry) Connect(name string) (domain.ClientID, domain.SessionToken, error) {
	if id, ok := r.nameToID[name]; ok {
		c := r.clients[id]
		if c == nil {
			panic(fmt.Sprintf("name %q maps to missing client %d", name, id))
		}

		if !c.disconnected {
			return 0, domain.SessionToken{}, fmt.Errorf("%w: %q", ErrNameRegistered, name)
		}

		// Reconnect: rotate the token and drop anything queued for the
		// previous session. The old token stops authenticating.
		delete(r.tokenToID, c.token)
		c.token = domain.NewSessionToken()
		c.lastActive = r.now()
		c.disconnected = false
		c.inbox = nil
		r.tokenToID[c.token] = id

		log.Info().Str("module", "core.registry").Int("id", int(id)).Str("name", name).Msg("client reconnected")
		return id, c.token, nil
	}

	id, ok := r.freeID()
	if !ok {
		return 0, domain.SessionToken{}, ErrTooManyClients
	}

	c := &client{
		info:       domain.ClientInfo{ID: id, Name: name},
		token:      domain.NewSessionToken(),
		lastActive: r.now(),
	}

	r.clients[id] = c
	r.nameToID[name] = id
	r.tokenToID[c.token] = id
	r.used.Insert(id)

	log.Info().Str("module", "core.registry").Int("id", int(id)).Str("name", name).Msg("client connected")
	return id, c.token, nil
}

// freeID returns the lowest unused slot.
func (r *Registry) freeID() (domain.ClientID, bool) {
	for id := domain.ClientID(0); id < domain.MaxClients; id++ {
		if !r.used.Contains(id) {
			return id, true
		}
	}
	return 0, false
}

// Disconnect marks a client disconnected. Disconnecting an already
// disconnected client is an error, not a no-op.
func (r *Registry) Disconnect(id domain.ClientID) error {
	c, ok := r.clients[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidClientID, id)
	}
	if c.disconnected {
		return fmt.Errorf("%w: %d", ErrClientDisconnected, id)
	}

	c.disconnected = true
	log.Info().Str("module", "core.registry").Int("id", int(id)).Msg("client disconnected")
	return nil
}

// Auth resolves a session token to a client id and refreshes the client's
// liveness timestamp. A disconnected client's token does not authenticate;
// the client must reconnect first.
func (r *Registry) Auth(token domain.SessionToken) (domain.ClientID, error) {
	id, ok := r.tokenToID[token]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrInvalidSessionToken, token)
	}

	c := r.clients[id]
	if c == nil {
		panic(fmt.Sprintf("token index points to missing client %d", id))
	}
	if c.disconnected {
		return 0, fmt.Errorf("%w: %d", ErrClientDisconnected, id)
	}

	c.lastActive = r.now()
	return id, nil
}

// Purge evicts every client that is marked disconnected or has been
// inactive for at least maxInactive. It returns the ids that were lost to
// inactivity (not already marked disconnected) so the caller can announce
// them.
func (r *Registry) Purge(maxInactive time.Duration) []domain.ClientID {
	now := r.now()

	var lost []domain.ClientID
	for id, c := range r.clients {
		if !c.disconnected && now.Sub(c.lastActive) < maxInactive {
			continue
		}

		if !c.disconnected {
			lost = append(lost, id)
		}

		delete(r.clients, id)
		delete(r.nameToID, c.info.Name)
		delete(r.tokenToID, c.token)
		r.used.Remove(id)

		log.Info().Str("module", "core.registry").Int("id", int(id)).Str("name", c.info.Name).Msg("client purged")
	}
	return lost
}

// SendEvent appends one shared copy of the event to every present,
// connected recipient's inbox. Absent or disconnected recipients are
// silently skipped.
func (r *Registry) SendEvent(to domain.ClientSet, ev domain.Event) {
	for _, id := range to.IDs() {
		c, ok := r.clients[id]
		if !ok || c.disconnected {
			continue
		}
		c.inbox = append(c.inbox, ev)
	}
}

// TakeEvents drains the client's inbox. Unknown ids drain to nothing.
func (r *Registry) TakeEvents(id domain.ClientID) []domain.Event {
	c, ok := r.clients[id]
	if !ok {
		return nil
	}
	out := c.inbox
	c.inbox = nil
	return out
}

// AllClientIDs returns the ids of every registered client, including
// disconnected ones that have not been purged yet.
func (r *Registry) AllClientIDs() domain.ClientSet {
	return r.used
}

// AllClientInfo lists client infos in ascending id order.
func (r *Registry) AllClientInfo() []domain.ClientInfo {
	out := make([]domain.ClientInfo, 0, len(r.clients))
	for _, id := range r.used.IDs() {
		out = append(out, r.clients[id].info)
	}
	return out
}

// ClientInfo returns the info for one client.
func (r *Registry) ClientInfo(id domain.ClientID) (domain.ClientInfo, error) {
	c, ok := r.clients[id]
	if !ok {
		return domain.ClientInfo{}, fmt.Errorf("%w: %d", ErrInvalidClientID, id)
	}
	return c.info, nil
}
