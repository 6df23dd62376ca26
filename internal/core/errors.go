package core

import "errors"

var (
	// ErrNameRegistered means the requested name belongs to a currently
	// connected client.
	ErrNameRegistered = errors.New("client name is already registered")
	// ErrTooManyClients means the id pool is exhausted.
	ErrTooManyClients = errors.New("too many clients are registered")

	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrInvalidClientID     = errors.New("client id is not registered")
	// ErrClientDisconnected means the client exists but is marked
	// disconnected; it must reconnect before acting.
	ErrClientDisconnected = errors.New("client is disconnected")

	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrInvalidGameConfig = errors.New("invalid game config")
	ErrInvalidVote       = errors.New("invalid vote")

	ErrGameInProgress   = errors.New("a game is already in progress")
	ErrNoGameInProgress = errors.New("no game is in progress")
)
