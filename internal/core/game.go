package core

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/mafia/internal/domain"
)

// GameConfig holds the per-game settings supplied at start.
type GameConfig struct {
	StartCycle domain.Cycle
	TimeForDay time.Duration
	// End the day cycle early once every alive player has voted.
	EndDayAfterAllVotes bool
	TimeForNight        time.Duration
	// End the night cycle early once every alive special role has voted.
	EndNightAfterAllVotes bool
	NumSpecialRoles       map[domain.SpecialRole]int
	// VoteGracePeriod rejects votes cast too soon after a cycle starts, so
	// last-millisecond votes cannot spill into the next cycle.
	VoteGracePeriod time.Duration
}

// Game is the state of one active game. It is mutated only by the server
// facade under its lock.
type Game struct {
	config        GameConfig
	roleToPlayers map[domain.SpecialRole][]domain.ClientID
	playerToRole  map[domain.ClientID]domain.SpecialRole
	playerStatus  map[domain.ClientID]domain.PlayerStatus
	cycle         domain.Cycle
	dayNum        int
	cycleStart    time.Time
	// votes maps voter to target; a nil target is an explicit skip.
	votes  map[domain.ClientID]*domain.ClientID
	winner *domain.Allegiance

	now func() time.Time
}

// StartGame validates the config against the connected clients and deals
// roles. Only clients present now become players; later connections
// spectate. The shuffle is driven entirely by rng, so a seeded rng yields a
// stable assignment.
func StartGame(config GameConfig, players domain.ClientSet, rng Rand) (*Game, error) {
	// IDs come out sorted ascending, which keeps seeded runs stable.
	ids := players.IDs()

	numMafia := config.NumSpecialRoles[domain.RoleMafia]
	totalSpecial := 0
	for _, n := range config.NumSpecialRoles {
		totalSpecial += n
	}

	if numMafia == 0 {
		return nil, fmt.Errorf("%w: need at least 1 mafia, got 0", ErrInvalidGameConfig)
	}
	if numMafia*2 >= len(ids) {
		return nil, fmt.Errorf(
			"%w: need at least %d players to play with %d mafia, only have %d players",
			ErrNotEnoughPlayers, numMafia*2+1, numMafia, len(ids),
		)
	}
	if totalSpecial > len(ids) {
		return nil, fmt.Errorf(
			"%w: %d special roles were provided, but only have %d players",
			ErrNotEnoughPlayers, totalSpecial, len(ids),
		)
	}

	shuffle(ids, rng)

	roleToPlayers := make(map[domain.SpecialRole][]domain.ClientID)
	playerToRole := make(map[domain.ClientID]domain.SpecialRole)

	idx := 0
	for _, role := range domain.SpecialRoles {
		for i := 0; i < config.NumSpecialRoles[role]; i++ {
			id := ids[idx]
			roleToPlayers[role] = append(roleToPlayers[role], id)
			playerToRole[id] = role
			idx++
		}
	}

	playerStatus := make(map[domain.ClientID]domain.PlayerStatus, len(ids))
	for _, id := range ids {
		playerStatus[id] = domain.StatusAlive
	}

	g := &Game{
		config:        config,
		roleToPlayers: roleToPlayers,
		playerToRole:  playerToRole,
		playerStatus:  playerStatus,
		cycle:         config.StartCycle,
		dayNum:        1,
		votes:         make(map[domain.ClientID]*domain.ClientID),
		now:           time.Now,
	}
	g.cycleStart = g.now()

	log.Info().Str("module", "core.game").
		Int("players", len(ids)).
		Int("special_roles", totalSpecial).
		Str("start_cycle", g.cycle.String()).
		Msg("game started")

	return g, nil
}

// shuffle is a Fisher-Yates walk from the top index down.
func shuffle(ids []domain.ClientID, rng Rand) {
	for i := len(ids) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		ids[i], ids[j] = ids[j], ids[i]
	}
}

func (g *Game) Winner() *domain.Allegiance { return g.winner }

func (g *Game) Cycle() domain.Cycle { return g.cycle }

func (g *Game) DayNum() int { return g.dayNum }

// CycleDuration is the configured length of the current cycle.
func (g *Game) CycleDuration() time.Duration {
	if g.cycle == domain.CycleDay {
		return g.config.TimeForDay
	}
	return g.config.TimeForNight
}

func (g *Game) CycleStart() time.Time { return g.cycleStart }

// PlayerStatuses returns a copy of the status map.
func (g *Game) PlayerStatuses() map[domain.ClientID]domain.PlayerStatus {
	out := make(map[domain.ClientID]domain.PlayerStatus, len(g.playerStatus))
	for id, st := range g.playerStatus {
		out[id] = st
	}
	return out
}

// PlayerRoles returns a copy of the role map.
func (g *Game) PlayerRoles() map[domain.ClientID]domain.SpecialRole {
	return copyRoles(g.playerToRole)
}

func copyRoles(m map[domain.ClientID]domain.SpecialRole) map[domain.ClientID]domain.SpecialRole {
	out := make(map[domain.ClientID]domain.SpecialRole, len(m))
	for id, r := range m {
		out[id] = r
	}
	return out
}

// Votes returns the live votes map. Callers must not mutate it.
func (g *Game) Votes() map[domain.ClientID]*domain.ClientID { return g.votes }

// Status returns the player's status; ok is false for spectators.
func (g *Game) Status(id domain.ClientID) (domain.PlayerStatus, bool) {
	st, ok := g.playerStatus[id]
	return st, ok
}

// Role returns the player's special role; ok is false for plain villagers
// and spectators.
func (g *Game) Role(id domain.ClientID) (domain.SpecialRole, bool) {
	r, ok := g.playerToRole[id]
	return r, ok
}

// AllegianceOf defaults to villagers for everyone without a special role.
func (g *Game) AllegianceOf(id domain.ClientID) domain.Allegiance {
	if r, ok := g.playerToRole[id]; ok {
		return r.Allegiance()
	}
	return domain.AllegianceVillagers
}

// Players returns the set of players matching the predicate.
func (g *Game) Players(pred func(status domain.PlayerStatus, role *domain.SpecialRole, allegiance domain.Allegiance) bool) domain.ClientSet {
	var out domain.ClientSet
	for id, st := range g.playerStatus {
		var role *domain.SpecialRole
		if r, ok := g.playerToRole[id]; ok {
			role = &r
		}
		if pred(st, role, g.AllegianceOf(id)) {
			out.Insert(id)
		}
	}
	return out
}

// IsAlive is the predicate for Players selecting alive players.
func IsAlive(status domain.PlayerStatus, _ *domain.SpecialRole, _ domain.Allegiance) bool {
	return status == domain.StatusAlive
}

func (g *Game) aliveCount() int {
	n := 0
	for _, st := range g.playerStatus {
		if st == domain.StatusAlive {
			n++
		}
	}
	return n
}

func (g *Game) aliveMafiaCount() int {
	n := 0
	for id, st := range g.playerStatus {
		if st == domain.StatusAlive && g.AllegianceOf(id) == domain.AllegianceMafia {
			n++
		}
	}
	return n
}

func (g *Game) aliveSpecialCount() int {
	n := 0
	for id, st := range g.playerStatus {
		if st != domain.StatusAlive {
			continue
		}
		if _, ok := g.playerToRole[id]; ok {
			n++
		}
	}
	return n
}

// CastVote records a vote for the current cycle, overwriting any earlier
// vote by the same voter. A nil target is an explicit skip. It never ends
// the cycle; the facade polls for that separately.
func (g *Game) CastVote(voter domain.ClientID, target *domain.ClientID) error {
	if g.winner != nil {
		return fmt.Errorf("%w: game is complete", ErrInvalidVote)
	}

	if st, ok := g.playerStatus[voter]; !ok || st != domain.StatusAlive {
		return fmt.Errorf("%w: voter %d is not alive", ErrInvalidVote, voter)
	}

	if target != nil {
		if st, ok := g.playerStatus[*target]; !ok || st != domain.StatusAlive {
			return fmt.Errorf("%w: target %d is not alive", ErrInvalidVote, *target)
		}
	}

	if g.now().Sub(g.cycleStart) < g.config.VoteGracePeriod {
		return fmt.Errorf(
			"%w: must wait %s after cycle start to cast vote",
			ErrInvalidVote, g.config.VoteGracePeriod,
		)
	}

	if g.cycle == domain.CycleNight {
		if _, ok := g.playerToRole[voter]; !ok {
			return fmt.Errorf("%w: %d has no role eligible to vote at night", ErrInvalidVote, voter)
		}
	}

	g.votes[voter] = target
	return nil
}

// PollEndCycle ends the cycle if its time is up or every eligible voter has
// voted, returning the resulting events in order. It returns nothing for a
// finished game.
func (g *Game) PollEndCycle() []domain.Event {
	if g.winner != nil {
		return nil
	}

	if g.now().Sub(g.cycleStart) > g.CycleDuration() {
		log.Info().Str("module", "core.game").Str("cycle", g.cycle.String()).Int("day", g.dayNum).Msg("cycle time expired")
		return g.endCycle()
	}

	if g.cycle == domain.CycleDay && g.config.EndDayAfterAllVotes && len(g.votes) == g.aliveCount() {
		log.Info().Str("module", "core.game").Int("day", g.dayNum).Msg("all day votes cast")
		return g.endCycle()
	}

	if g.cycle == domain.CycleNight && g.config.EndNightAfterAllVotes && len(g.votes) == g.aliveSpecialCount() {
		log.Info().Str("module", "core.game").Int("day", g.dayNum).Msg("all night votes cast")
		return g.endCycle()
	}

	return nil
}

// endCycle resolves the current cycle's votes, applies deaths, checks the
// terminal conditions, and advances to the next cycle. Event order is
// deaths/failures, then investigations, then either the win or the cycle
// transition.
func (g *Game) endCycle() []domain.Event {
	var events []domain.Event

	switch g.cycle {
	case domain.CycleDay:
		events = g.resolveDay()
	case domain.CycleNight:
		events = g.resolveNight()
	}

	if won := g.checkWin(); won != nil {
		return append(events, won)
	}

	g.votes = make(map[domain.ClientID]*domain.ClientID)
	g.cycle = g.cycle.Next()
	if g.cycle == domain.CycleDay {
		g.dayNum++
	}
	g.cycleStart = g.now()

	return append(events, &domain.SetCycle{
		StartTimeUnixSecs: g.cycleStart.Unix(),
		DurationSecs:      int64(g.CycleDuration().Seconds()),
		Cycle:             g.cycle,
		DayNum:            g.dayNum,
	})
}

func (g *Game) resolveDay() []domain.Event {
	counts := make(map[domain.ClientID]int)
	for _, target := range g.votes {
		if target != nil {
			counts[*target]++
		}
	}

	alive := g.aliveCount()
	for target, count := range counts {
		// Strict supermajority; at most one target can clear it.
		if count*2 > alive {
			g.playerStatus[target] = domain.StatusDead
			log.Info().Str("module", "core.game").Int("player", int(target)).Int("day", g.dayNum).Msg("player voted out")
			return []domain.Event{&domain.PlayerKilled{
				Player:       target,
				Cycle:        domain.CycleDay,
				DeathMessage: dayDeathMessages[0],
			}}
		}
	}

	return []domain.Event{&domain.FailedVote{
		Cycle:   domain.CycleDay,
		Channel: domain.ChannelPublic,
	}}
}

func (g *Game) resolveNight() []domain.Event {
	var events []domain.Event

	// Doctors' targets are protected. Dead doctors cannot have voted, so no
	// liveness filter is needed here.
	protected := domain.ClientSet(0)
	for _, doctor := range g.roleToPlayers[domain.RoleDoctor] {
		if target, ok := g.votes[doctor]; ok && target != nil {
			protected.Insert(*target)
		}
	}

	mafiaCounts := make(map[domain.ClientID]int)
	for voter, target := range g.votes {
		if g.AllegianceOf(voter) != domain.AllegianceMafia {
			continue
		}
		if target != nil {
			mafiaCounts[*target]++
		}
	}

	aliveMafia := g.aliveMafiaCount()
	killed := false
	for target, count := range mafiaCounts {
		if count*2 <= aliveMafia {
			continue
		}
		killed = true
		if protected.Contains(target) {
			log.Info().Str("module", "core.game").Int("player", int(target)).Msg("player protected from mafia kill")
			break
		}
		g.playerStatus[target] = domain.StatusDead
		log.Info().Str("module", "core.game").Int("player", int(target)).Msg("player killed by mafia")
		events = append(events, &domain.PlayerKilled{
			Player:       target,
			Cycle:        domain.CycleNight,
			DeathMessage: nightDeathMessages[0],
		})
		break
	}
	if !killed {
		events = append(events, &domain.FailedVote{
			Cycle:   domain.CycleNight,
			Channel: domain.ChannelMafia,
		})
	}

	// Investigations resolve after the kill: a detective or target who died
	// tonight yields no report.
	for _, detective := range g.roleToPlayers[domain.RoleDetective] {
		if g.playerStatus[detective] != domain.StatusAlive {
			continue
		}
		target, ok := g.votes[detective]
		if !ok || target == nil || g.playerStatus[*target] != domain.StatusAlive {
			continue
		}
		allegiance := g.AllegianceOf(*target)
		log.Info().Str("module", "core.game").
			Int("actor", int(detective)).
			Int("target", int(*target)).
			Str("allegiance", allegiance.String()).
			Msg("player investigated")
		events = append(events, &domain.PlayerInvestigated{
			Actor:      detective,
			Target:     *target,
			Allegiance: allegiance,
		})
	}

	return events
}

// checkWin applies the terminal conditions in order and seals the game when
// one holds.
func (g *Game) checkWin() domain.Event {
	aliveMafia := g.aliveMafiaCount()
	alive := g.aliveCount()

	win := func(side domain.Allegiance) domain.Event {
		g.winner = &side
		log.Info().Str("module", "core.game").Str("side", side.String()).Msg("game won")
		return &domain.GameWon{
			PlayerToRole: copyRoles(g.playerToRole),
			Side:         side,
		}
	}

	if aliveMafia == 0 {
		return win(domain.AllegianceVillagers)
	}
	if aliveMafia*2 >= alive {
		return win(domain.AllegianceMafia)
	}
	if g.dayNum >= 100 {
		// Safety bound: a stalled game defaults to the mafia.
		log.Error().Str("module", "core.game").Int("day", g.dayNum).Msg("game exceeded day limit")
		return win(domain.AllegianceMafia)
	}
	return nil
}
