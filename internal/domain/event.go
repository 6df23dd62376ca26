package domain

// EventChannel scopes who may observe a message or vote event.
type EventChannel int

const (
	// ChannelPublic is visible to everyone.
	ChannelPublic EventChannel = iota
	// ChannelMafia is visible to mafia, spectators, and dead clients.
	ChannelMafia
	// ChannelSpectator is visible to spectators and dead clients only.
	ChannelSpectator
)

func (c EventChannel) String() string {
	switch c {
	case ChannelPublic:
		return "public"
	case ChannelMafia:
		return "mafia"
	case ChannelSpectator:
		return "spectator"
	}
	return "unknown"
}

// Message is a chat payload carried inside MessageReceived.
type Message struct {
	Channel  EventChannel `json:"channel"`
	Contents string       `json:"contents"`
	From     Entity       `json:"from"`
}

// Event is the closed set of things the server tells clients about. Events
// are immutable once emitted; a single copy is shared across every
// recipient's inbox. Switches over Event must handle every variant.
type Event interface {
	isEvent()
}

// SetServerInfo replaces the client's entire view of the server. Sent
// individually on connect, tailored to the recipient.
type SetServerInfo struct {
	Info ServerInfo `json:"info"`
}

// SetGame replaces the client's view of the active game. Sent individually
// on game start, tailored to the recipient.
type SetGame struct {
	Info GameInfo `json:"info"`
}

// EndGame signals the active game was torn down.
type EndGame struct{}

type ClientConnected struct {
	Client ClientInfo `json:"client"`
}

type ClientDisconnected struct {
	Client ClientID `json:"client"`
}

type MessageReceived struct {
	Message Message `json:"message"`
}

// VoteIssued reports a vote (or explicit skip when Target is nil) in the
// channel the vote belongs to.
type VoteIssued struct {
	Voter   ClientID     `json:"voter"`
	Target  *ClientID    `json:"target"`
	Channel EventChannel `json:"channel"`
}

// FailedVote reports a cycle that ended without a successful vote.
type FailedVote struct {
	Cycle   Cycle        `json:"cycle"`
	Channel EventChannel `json:"channel"`
}

// SetCycle announces a cycle transition.
type SetCycle struct {
	StartTimeUnixSecs int64 `json:"start_time_unix_secs"`
	DurationSecs      int64 `json:"duration_secs"`
	Cycle             Cycle `json:"cycle"`
	DayNum            int   `json:"day_num"`
}

type PlayerKilled struct {
	Player       ClientID `json:"player"`
	Cycle        Cycle    `json:"cycle"`
	DeathMessage string   `json:"death_message"`
}

// PlayerInvestigated reports a detective's findings. Only the investigator
// and spectators may see it.
type PlayerInvestigated struct {
	Actor      ClientID   `json:"actor"`
	Target     ClientID   `json:"target"`
	Allegiance Allegiance `json:"allegiance"`
}

// GameWon carries the full role reveal.
type GameWon struct {
	PlayerToRole map[ClientID]SpecialRole `json:"player_to_role"`
	Side         Allegiance               `json:"side"`
}

func (*SetServerInfo) isEvent()      {}
func (*SetGame) isEvent()            {}
func (*EndGame) isEvent()            {}
func (*ClientConnected) isEvent()    {}
func (*ClientDisconnected) isEvent() {}
func (*MessageReceived) isEvent()    {}
func (*VoteIssued) isEvent()         {}
func (*FailedVote) isEvent()         {}
func (*SetCycle) isEvent()           {}
func (*PlayerKilled) isEvent()       {}
func (*PlayerInvestigated) isEvent() {}
func (*GameWon) isEvent()            {}
