package game

import (
	"sync"
	"testing"
	"time"

	"github.com/cloudydaiyz/ispy-backend/config"
	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	"github.com/cloudydaiyz/ispy-backend/internal/auth"
	"github.com/cloudydaiyz/ispy-backend/internal/leaderboard"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

// stubStores is an in-memory implementation of the storage ports for
// exercising the session core without the real backends.
type stubStores struct {
	mu      sync.Mutex
	users   map[string]User
	players map[string]Player
	admins  map[string]Admin
	stats   *GameStats
	history []Game
	metrics AppMetrics
}

func newStubStores() *stubStores {
	return &stubStores{
		users:   make(map[string]User),
		players: make(map[string]Player),
		admins:  make(map[string]Admin),
		metrics: AppMetrics{GameState: "no-game"},
	}
}

func (s *stubStores) ReadUser(username string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return User{}, apperr.New(apperr.InvalidInput, "user %s not found", username)
	}
	return user, nil
}

func (s *stubStores) ReadOptionalUser(username string) (User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	return user, ok, nil
}

func (s *stubStores) WriteUser(user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Username]; ok {
		return apperr.New(apperr.InvalidInput, "user %s already exists", user.Username)
	}
	s.users[user.Username] = user
	return nil
}

func (s *stubStores) DropUser(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, username)
	return nil
}

func (s *stubStores) DropUsers(usernames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range usernames {
		delete(s.users, u)
	}
	return nil
}

func (s *stubStores) DropAllUsers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = make(map[string]User)
	return nil
}

func (s *stubStores) ReadPlayer(username string) (Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[username]
	if !ok {
		return Player{}, apperr.New(apperr.InvalidInput, "player %s not found", username)
	}
	player.TasksSubmitted = append([]TaskSubmission(nil), player.TasksSubmitted...)
	return player, nil
}

func (s *stubStores) CreatePlayer(player Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[player.Username]; ok {
		return apperr.New(apperr.InvalidInput, "player %s already exists", player.Username)
	}
	s.players[player.Username] = player
	return nil
}

func (s *stubStores) WritePlayer(player Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.players[player.Username]
	if !ok {
		return apperr.New(apperr.InvalidInput, "player %s not found", player.Username)
	}
	player.TasksSubmitted = stored.TasksSubmitted
	s.players[player.Username] = player
	return nil
}

func (s *stubStores) PushTaskSubmission(username string, submission TaskSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	player, ok := s.players[username]
	if !ok {
		return apperr.New(apperr.InvalidInput, "player %s not found", username)
	}
	player.TasksSubmitted = append(player.TasksSubmitted, submission)
	s.players[username] = player
	return nil
}

func (s *stubStores) DropPlayer(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, username)
	return nil
}

func (s *stubStores) DropPlayers() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players = make(map[string]Player)
	return nil
}

func (s *stubStores) ReadAdmin(username string) (Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[username]
	if !ok {
		return Admin{}, apperr.New(apperr.InvalidInput, "admin %s not found", username)
	}
	return admin, nil
}

func (s *stubStores) ReadOptionalAdmin(username string) (Admin, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	admin, ok := s.admins[username]
	return admin, ok, nil
}

func (s *stubStores) CreateAdmins(admins []Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, admin := range admins {
		s.admins[admin.Username] = admin
	}
	return nil
}

func (s *stubStores) WriteAdmin(admin Admin) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[admin.Username] = admin
	return nil
}

func (s *stubStores) DropAdmin(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.admins, username)
	return nil
}

func (s *stubStores) DropAdmins() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins = make(map[string]Admin)
	return nil
}

func (s *stubStores) ReadGameStats() (GameStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return GameStats{}, apperr.New(apperr.IllegalState, "no active game")
	}
	stats := *s.stats
	stats.Players = append([]string(nil), stats.Players...)
	stats.Admins = append([]string(nil), stats.Admins...)
	return stats, nil
}

func (s *stubStores) CreateGameStats(stats GameStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats != nil {
		return apperr.New(apperr.IllegalState, "a game is already active")
	}
	s.stats = &stats
	return nil
}

func (s *stubStores) WriteGameStats(stats GameStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return apperr.New(apperr.IllegalState, "no active game")
	}
	s.stats = &stats
	return nil
}

func (s *stubStores) DropGameStats() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats = nil
	return nil
}

func (s *stubStores) ReadGameHistory() ([]Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Game(nil), s.history...), nil
}

func (s *stubStores) PushGame(result Game) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, result)
	if len(s.history) > HistoryCapacity {
		s.history = s.history[len(s.history)-HistoryCapacity:]
	}
	return nil
}

func (s *stubStores) ReadAppMetrics() (AppMetrics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics, nil
}

func (s *stubStores) WriteAppMetrics(metrics AppMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = metrics
	return nil
}

type fixture struct {
	service  *Service
	stores   *stubStores
	lb       *leaderboard.Memory
	registry *wsPkg.Registry
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stores := newStubStores()
	lb := leaderboard.NewMemory()
	registry := wsPkg.NewRegistry()
	authService := auth.NewService(config.Config{JWTSecret: "test-secret"})
	service := NewService(Stores{
		Users:   stores,
		Players: stores,
		Admins:  stores,
		Stats:   stores,
		History: stores,
		Metrics: stores,
	}, lb, authService, registry)

	f := &fixture{
		service:  service,
		stores:   stores,
		lb:       lb,
		registry: registry,
		now:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	service.now = func() time.Time { return f.now }
	t.Cleanup(service.Close)
	return f
}

// baseConfig returns a one-required-task configuration whose scheduled
// window sits in the fixture's future, so deferred triggers stay inert.
func (f *fixture) baseConfig() GameConfiguration {
	return GameConfiguration{
		Tasks: []Task{{
			Title:  "Find the fountain",
			Prompt: "Where is the fountain?",
			Responses: []TaskResponse{
				{Content: "In the quad", Correct: true},
				{Content: "In the library", Correct: false},
			},
			ResponseType: "single select",
			Required:     true,
			SuccessValue: 10,
		}},
		StartTime:            f.now.Add(time.Hour),
		EndTime:              f.now.Add(2 * time.Hour),
		MinPlayers:           1,
		MaxPlayers:           2,
		MinPlayersToComplete: 1,
	}
}

func (f *fixture) createGame(t *testing.T, config GameConfiguration, admins ...AdminCredential) {
	t.Helper()
	if _, err := f.service.CreateGame(config, "hostuser1", "hostpass1", admins); err != nil {
		t.Fatalf("CreateGame failed: %v", err)
	}
}

func (f *fixture) join(t *testing.T, username string) {
	t.Helper()
	if _, err := f.service.JoinGame(username, "password1"); err != nil {
		t.Fatalf("JoinGame(%s) failed: %v", username, err)
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	if err := f.service.StartGame(); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
}

func (f *fixture) stats(t *testing.T) GameStats {
	t.Helper()
	stats, err := f.stores.ReadGameStats()
	if err != nil {
		t.Fatalf("ReadGameStats failed: %v", err)
	}
	return stats
}

// taskID returns the assigned ID of the i-th configured task.
func (f *fixture) taskID(t *testing.T, i int) string {
	t.Helper()
	return f.stats(t).Configuration.Tasks[i].ID
}

// responseID returns the assigned ID of the j-th response of task i.
func (f *fixture) responseID(t *testing.T, i, j int) string {
	t.Helper()
	return f.stats(t).Configuration.Tasks[i].Responses[j].ID
}
