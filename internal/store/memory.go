// Package store provides the storage backends for the session core's
// storage ports.
package store

import (
	"sync"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	"github.com/cloudydaiyz/ispy-backend/internal/game"
)

// Memory implements every storage port in process memory. Reads hand out
// deep copies so callers never alias store state.
type Memory struct {
	mu      sync.Mutex
	users   map[string]game.User
	players map[string]game.Player
	admins  map[string]game.Admin
	stats   *game.GameStats
	history []game.Game
	metrics game.AppMetrics
}

func NewMemory() *Memory {
	return &Memory{
		users:   make(map[string]game.User),
		players: make(map[string]game.Player),
		admins:  make(map[string]game.Admin),
		metrics: game.AppMetrics{GameState: "no-game"},
	}
}

// == User store == //

func (m *Memory) ReadUser(username string) (game.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	if !ok {
		return game.User{}, apperr.New(apperr.InvalidInput, "user %s not found", username)
	}
	return user, nil
}

func (m *Memory) ReadOptionalUser(username string) (game.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[username]
	return user, ok, nil
}

func (m *Memory) WriteUser(user game.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.Username]; ok {
		return apperr.New(apperr.InvalidInput, "user %s already exists", user.Username)
	}
	m.users[user.Username] = user
	return nil
}

func (m *Memory) DropUser(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.users, username)
	return nil
}

func (m *Memory) DropUsers(usernames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, username := range usernames {
		delete(m.users, username)
	}
	return nil
}

func (m *Memory) DropAllUsers() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.users = make(map[string]game.User)
	return nil
}

// == Player store == //

func (m *Memory) ReadPlayer(username string) (game.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[username]
	if !ok {
		return game.Player{}, apperr.New(apperr.InvalidInput, "player %s not found", username)
	}
	return copyPlayer(player), nil
}

func (m *Memory) CreatePlayer(player game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[player.Username]; ok {
		return apperr.New(apperr.InvalidInput, "player %s already exists", player.Username)
	}
	m.players[player.Username] = copyPlayer(player)
	return nil
}

func (m *Memory) WritePlayer(player game.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.players[player.Username]; !ok {
		return apperr.New(apperr.InvalidInput, "player %s not found", player.Username)
	}
	m.players[player.Username] = copyPlayer(player)
	return nil
}

func (m *Memory) PushTaskSubmission(username string, submission game.TaskSubmission) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	player, ok := m.players[username]
	if !ok {
		return apperr.New(apperr.InvalidInput, "player %s not found", username)
	}
	player.TasksSubmitted = append(player.TasksSubmitted, copySubmission(submission))
	m.players[username] = player
	return nil
}

func (m *Memory) DropPlayer(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.players, username)
	return nil
}

func (m *Memory) DropPlayers() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.players = make(map[string]game.Player)
	return nil
}

// == Admin store == //

func (m *Memory) ReadAdmin(username string) (game.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	admin, ok := m.admins[username]
	if !ok {
		return game.Admin{}, apperr.New(apperr.InvalidInput, "admin %s not found", username)
	}
	return admin, nil
}

func (m *Memory) ReadOptionalAdmin(username string) (game.Admin, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	admin, ok := m.admins[username]
	return admin, ok, nil
}

func (m *Memory) CreateAdmins(admins []game.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, admin := range admins {
		if _, ok := m.admins[admin.Username]; ok {
			return apperr.New(apperr.InvalidInput, "admin %s already exists", admin.Username)
		}
	}
	for _, admin := range admins {
		m.admins[admin.Username] = admin
	}
	return nil
}

func (m *Memory) WriteAdmin(admin game.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.admins[admin.Username]; !ok {
		return apperr.New(apperr.InvalidInput, "admin %s not found", admin.Username)
	}
	m.admins[admin.Username] = admin
	return nil
}

func (m *Memory) DropAdmin(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.admins, username)
	return nil
}

func (m *Memory) DropAdmins() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.admins = make(map[string]game.Admin)
	return nil
}

// == Game stats store == //

func (m *Memory) ReadGameStats() (game.GameStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stats == nil {
		return game.GameStats{}, apperr.New(apperr.IllegalState, "no active game")
	}
	return copyStats(*m.stats), nil
}

func (m *Memory) CreateGameStats(stats game.GameStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stats != nil {
		return apperr.New(apperr.IllegalState, "a game is already active")
	}
	copied := copyStats(stats)
	m.stats = &copied
	return nil
}

func (m *Memory) WriteGameStats(stats game.GameStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stats == nil {
		return apperr.New(apperr.IllegalState, "no active game")
	}
	copied := copyStats(stats)
	m.stats = &copied
	return nil
}

func (m *Memory) DropGameStats() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats = nil
	return nil
}

// == Game history store == //

func (m *Memory) ReadGameHistory() ([]game.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	history := make([]game.Game, 0, len(m.history))
	for _, g := range m.history {
		history = append(history, copyGame(g))
	}
	return history, nil
}

func (m *Memory) PushGame(result game.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append(m.history, copyGame(result))
	if len(m.history) > game.HistoryCapacity {
		m.history = m.history[len(m.history)-game.HistoryCapacity:]
	}
	return nil
}

// == App metrics store == //

func (m *Memory) ReadAppMetrics() (game.AppMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.metrics, nil
}

func (m *Memory) WriteAppMetrics(metrics game.AppMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.metrics = metrics
	return nil
}

// == Copy helpers == //

func copyPlayer(p game.Player) game.Player {
	copied := p
	copied.TasksSubmitted = make([]game.TaskSubmission, len(p.TasksSubmitted))
	for i, s := range p.TasksSubmitted {
		copied.TasksSubmitted[i] = copySubmission(s)
	}
	return copied
}

func copySubmission(s game.TaskSubmission) game.TaskSubmission {
	copied := s
	copied.Responses = append([]game.TaskResponse(nil), s.Responses...)
	return copied
}

func copyStats(stats game.GameStats) game.GameStats {
	copied := stats
	copied.Players = append([]string(nil), stats.Players...)
	copied.Admins = append([]string(nil), stats.Admins...)
	copied.Configuration.Tasks = make([]game.Task, len(stats.Configuration.Tasks))
	for i, t := range stats.Configuration.Tasks {
		task := t
		task.Responses = append([]game.TaskResponse(nil), t.Responses...)
		copied.Configuration.Tasks[i] = task
	}
	return copied
}

func copyGame(g game.Game) game.Game {
	return game.Game{
		GameStats:   copyStats(g.GameStats),
		Leaderboard: append([]game.LeaderboardEntry(nil), g.Leaderboard...),
	}
}
