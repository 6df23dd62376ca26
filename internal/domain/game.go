package domain

// Allegiance is the side a player wins with.
type Allegiance int

const (
	AllegianceMafia Allegiance = iota
	AllegianceVillagers
)

func (a Allegiance) String() string {
	switch a {
	case AllegianceMafia:
		return "mafia"
	case AllegianceVillagers:
		return "villagers"
	}
	return "unknown"
}

// SpecialRole is a role with a night action. Players without one are plain
// villagers.
type SpecialRole int

const (
	RoleMafia SpecialRole = iota
	// RoleDoctor protects one player from a mafia kill each night.
	RoleDoctor
	// RoleDetective learns the allegiance of one player each night.
	RoleDetective
)

// SpecialRoles lists every role in its canonical order. Role assignment
// iterates this slice so that a seeded shuffle yields a stable outcome.
var SpecialRoles = [...]SpecialRole{RoleMafia, RoleDoctor, RoleDetective}

func (r SpecialRole) Allegiance() Allegiance {
	if r == RoleMafia {
		return AllegianceMafia
	}
	return AllegianceVillagers
}

func (r SpecialRole) String() string {
	switch r {
	case RoleMafia:
		return "mafia"
	case RoleDoctor:
		return "doctor"
	case RoleDetective:
		return "detective"
	}
	return "unknown"
}

// PlayerStatus is the in-game state of a player. Absence from the status map
// means the client is not playing (a spectator).
type PlayerStatus int

const (
	StatusAlive PlayerStatus = iota
	StatusDead
)

func (s PlayerStatus) String() string {
	if s == StatusAlive {
		return "alive"
	}
	return "dead"
}

// Cycle is the current phase of the game.
type Cycle int

const (
	CycleDay Cycle = iota
	CycleNight
)

func (c Cycle) Next() Cycle {
	if c == CycleDay {
		return CycleNight
	}
	return CycleDay
}

func (c Cycle) String() string {
	if c == CycleDay {
		return "day"
	}
	return "night"
}

// GameInfo is a client-facing snapshot of the active game. The votes and
// player_to_role fields are filtered per recipient before being handed out.
type GameInfo struct {
	CycleStartUnixSecs int64                      `json:"cycle_start_unix_secs"`
	CycleDurationSecs  int64                      `json:"cycle_duration_secs"`
	CurrentCycle       Cycle                      `json:"current_cycle"`
	DayNum             int                        `json:"day_num"`
	PlayerToRole       map[ClientID]SpecialRole   `json:"player_to_role"`
	PlayerStatus       map[ClientID]PlayerStatus  `json:"player_status"`
	Votes              map[ClientID]*ClientID     `json:"votes"`
	Winner             *Allegiance                `json:"winner,omitempty"`
}

// ServerInfo is the full client-facing snapshot handed to a client on
// connect.
type ServerInfo struct {
	ConnectedClients []ClientInfo `json:"connected_clients"`
	ActiveGame       *GameInfo    `json:"active_game,omitempty"`
}
