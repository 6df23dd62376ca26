package mirror

import (
	"fmt"
	"testing"

	"github.com/dkeye/mafia/internal/domain"
)

func testGameInfo() domain.GameInfo {
	return domain.GameInfo{
		CycleStartUnixSecs: 100,
		CycleDurationSecs:  300,
		CurrentCycle:       domain.CycleDay,
		DayNum:             1,
		PlayerToRole:       map[domain.ClientID]domain.SpecialRole{},
		PlayerStatus: map[domain.ClientID]domain.PlayerStatus{
			0: domain.StatusAlive,
			1: domain.StatusAlive,
			2: domain.StatusAlive,
		},
		Votes: map[domain.ClientID]*domain.ClientID{},
	}
}

func TestMirrorClientRoster(t *testing.T) {
	s := NewState()

	s.ApplyEvent(&domain.SetServerInfo{Info: domain.ServerInfo{
		ConnectedClients: []domain.ClientInfo{{ID: 0, Name: "garnet"}},
	}})
	s.ApplyEvent(&domain.ClientConnected{Client: domain.ClientInfo{ID: 1, Name: "pearl"}})

	if len(s.Clients) != 2 {
		t.Fatalf("clients = %v, want 2 entries", s.Clients)
	}
	if got := s.ClientName(1); got != "pearl" {
		t.Fatalf("ClientName(1) = %q, want pearl", got)
	}

	s.ApplyEvent(&domain.ClientDisconnected{Client: 0})
	if len(s.Clients) != 1 || s.Clients[0].ID != 1 {
		t.Fatalf("clients after disconnect = %v, want only pearl", s.Clients)
	}
	if got := s.ClientName(0); got != "client 0" {
		t.Fatalf("ClientName(0) = %q, want fallback", got)
	}
}

func TestMirrorGameLifecycle(t *testing.T) {
	s := NewState()
	s.ApplyEvent(&domain.SetServerInfo{Info: domain.ServerInfo{
		ConnectedClients: []domain.ClientInfo{
			{ID: 0, Name: "garnet"}, {ID: 1, Name: "pearl"}, {ID: 2, Name: "amethyst"},
		},
	}})

	s.ApplyEvent(&domain.SetGame{Info: testGameInfo()})
	if s.Game == nil || s.Game.DayNum != 1 {
		t.Fatalf("game = %+v, want day 1", s.Game)
	}

	target := domain.ClientID(1)
	s.ApplyEvent(&domain.VoteIssued{Voter: 0, Target: &target, Channel: domain.ChannelPublic})
	if got, ok := s.Game.Votes[0]; !ok || *got != 1 {
		t.Fatalf("votes = %v, want 0 -> 1", s.Game.Votes)
	}

	s.ApplyEvent(&domain.PlayerKilled{Player: 1, Cycle: domain.CycleDay, DeathMessage: "was hung for their unforgivable sins"})
	if s.Game.PlayerStatus[1] != domain.StatusDead {
		t.Fatalf("player 1 status = %v, want dead", s.Game.PlayerStatus[1])
	}
	last := s.Messages[len(s.Messages)-1]
	if last.Contents != "pearl was hung for their unforgivable sins that day." {
		t.Fatalf("kill line = %q", last.Contents)
	}

	s.ApplyEvent(&domain.SetCycle{StartTimeUnixSecs: 400, DurationSecs: 300, Cycle: domain.CycleNight, DayNum: 1})
	if s.Game.CurrentCycle != domain.CycleNight {
		t.Fatalf("cycle = %v, want night", s.Game.CurrentCycle)
	}
	if len(s.Game.Votes) != 0 {
		t.Fatalf("votes should reset on cycle change, got %v", s.Game.Votes)
	}

	s.ApplyEvent(&domain.PlayerInvestigated{Actor: 0, Target: 2, Allegiance: domain.AllegianceMafia})
	if s.Game.PlayerToRole[2] != domain.RoleMafia {
		t.Fatalf("roles after investigation = %v, want 2 as mafia", s.Game.PlayerToRole)
	}
	last = s.Messages[len(s.Messages)-1]
	if last.Contents != "amethyst is aligned with the mafia." {
		t.Fatalf("investigation line = %q", last.Contents)
	}

	s.ApplyEvent(&domain.GameWon{
		PlayerToRole: map[domain.ClientID]domain.SpecialRole{2: domain.RoleMafia},
		Side:         domain.AllegianceVillagers,
	})
	if s.Game.Winner == nil || *s.Game.Winner != domain.AllegianceVillagers {
		t.Fatalf("winner = %v, want villagers", s.Game.Winner)
	}
	if s.Game.PlayerToRole[2] != domain.RoleMafia {
		t.Fatalf("reveal = %v, want 2 as mafia", s.Game.PlayerToRole)
	}

	s.ApplyEvent(&domain.EndGame{})
	if s.Game != nil {
		t.Fatalf("game should clear on EndGame")
	}
}

func TestMirrorSnapshotIsDetachedFromEvent(t *testing.T) {
	s := NewState()

	info := testGameInfo()
	ev := &domain.SetGame{Info: info}
	s.ApplyEvent(ev)

	target := domain.ClientID(2)
	s.ApplyEvent(&domain.VoteIssued{Voter: 0, Target: &target, Channel: domain.ChannelPublic})

	if len(ev.Info.Votes) != 0 {
		t.Fatalf("folding mutated the event payload: %v", ev.Info.Votes)
	}
}

func TestMirrorMessageHistoryBounded(t *testing.T) {
	s := NewState()

	for i := 0; i < MaxMessageHistory+10; i++ {
		s.ApplyEvent(&domain.MessageReceived{Message: domain.Message{
			Channel:  domain.ChannelPublic,
			Contents: fmt.Sprintf("line %d", i),
			From:     domain.SystemEntity(),
		}})
	}

	if len(s.Messages) != MaxMessageHistory {
		t.Fatalf("history length = %d, want %d", len(s.Messages), MaxMessageHistory)
	}
	if s.Messages[0].Contents != "line 10" {
		t.Fatalf("oldest line = %q, want line 10", s.Messages[0].Contents)
	}
}
