package game

import (
	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

// Read-only queries. Each observes a consistent snapshot of the
// aggregate; the stores hand out deep copies.

func (s *Service) GetGameState() (GameState, error) {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return "", err
	}
	return stats.State, nil
}

// ViewGameInfo is the player-facing, redacted session view.
func (s *Service) ViewGameInfo() (PublicGameStats, error) {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return PublicGameStats{}, err
	}
	return publicGameStats(stats), nil
}

// ViewGameHostInfo is the full host/admin-facing view: the aggregate
// plus the current leaderboard.
func (s *Service) ViewGameHostInfo() (Game, error) {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return Game{}, err
	}
	entries, err := s.lb.ReadLeaderboard()
	if err != nil {
		return Game{}, err
	}
	return Game{GameStats: stats, Leaderboard: toLeaderboardEntries(entries)}, nil
}

func (s *Service) ViewPlayerInfo(username string) (Player, error) {
	return s.stores.Players.ReadPlayer(username)
}

func (s *Service) ViewTaskInfo(taskID string) (PublicTask, error) {
	task, err := s.readTask(taskID)
	if err != nil {
		return PublicTask{}, err
	}
	return publicTask(task), nil
}

func (s *Service) ViewTaskHostInfo(taskID string) (Task, error) {
	return s.readTask(taskID)
}

func (s *Service) GetGameHistory() ([]Game, error) {
	return s.stores.History.ReadGameHistory()
}

func (s *Service) Metrics() (AppMetrics, error) {
	return s.stores.Metrics.ReadAppMetrics()
}

func (s *Service) readTask(taskID string) (Task, error) {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return Task{}, err
	}
	task, ok := findTask(stats.Configuration.Tasks, taskID)
	if !ok {
		return Task{}, apperr.New(apperr.InvalidInput, "invalid task ID")
	}
	return task, nil
}

// pushGameUpdates notifies the connections currently watching game info
// after a relevant state change. Player viewers get the redacted view;
// host/admin viewers get the full game plus leaderboard.
func (s *Service) pushGameUpdates(stats GameStats) {
	if viewers := s.registry.GameInfoViewers(); len(viewers) > 0 {
		s.registry.Send(wsPkg.ToUsers(viewers...), wsPkg.GameInfo(publicGameStats(stats)))
	}
	if viewers := s.registry.GameHostInfoViewers(); len(viewers) > 0 {
		entries, err := s.lb.ReadLeaderboard()
		if err != nil {
			return
		}
		s.registry.Send(wsPkg.ToUsers(viewers...), wsPkg.GameHostInfo(Game{
			GameStats:   stats,
			Leaderboard: toLeaderboardEntries(entries),
		}))
	}
}
