// Package domain contains the data types shared by the server core, the
// transport adapters, and the client-side mirror. Types here carry no game
// logic beyond trivial derivations.
package domain

import "github.com/google/uuid"

// MaxClients bounds the client id pool. ClientSet relies on it fitting in a
// single 64-bit word.
const MaxClients = 64

// ClientID identifies a connected client. Ids are small integers drawn from
// a bounded pool and are reused after a client is purged.
type ClientID int

// SessionToken is the opaque bearer credential issued on every
// (re)connection.
type SessionToken uuid.UUID

func NewSessionToken() SessionToken {
	return SessionToken(uuid.New())
}

func (t SessionToken) String() string {
	return uuid.UUID(t).String()
}

// ParseSessionToken parses the string form produced by String.
func ParseSessionToken(s string) (SessionToken, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken(u), nil
}

// Entity identifies the sender of a message: either a client or the server
// itself.
type Entity struct {
	Client ClientID `json:"client"`
	System bool     `json:"system,omitempty"`
}

func ClientEntity(id ClientID) Entity { return Entity{Client: id} }

func SystemEntity() Entity { return Entity{System: true} }

// ClientInfo is the public information about a client.
type ClientInfo struct {
	ID   ClientID `json:"id"`
	Name string   `json:"name"`
}
