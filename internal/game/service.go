package game

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
	"github.com/cloudydaiyz/ispy-backend/internal/auth"
	"github.com/cloudydaiyz/ispy-backend/internal/leaderboard"
	wsPkg "github.com/cloudydaiyz/ispy-backend/pkg/websocket"
)

const (
	minTasks  = 1
	maxTasks  = 20
	maxAdmins = 3
)

// Service owns the session aggregate and is the only component allowed
// to mutate it. Every mutating operation runs under one mutex so derived
// state (counts, ranks, completion flags) can never interleave
// inconsistently.
type Service struct {
	mu       sync.Mutex
	stores   Stores
	lb       leaderboard.Store
	auth     *auth.Service
	registry *wsPkg.Registry

	startTrigger *time.Timer
	endTrigger   *time.Timer

	now func() time.Time
}

func NewService(stores Stores, lb leaderboard.Store, authService *auth.Service, registry *wsPkg.Registry) *Service {
	return &Service{
		stores:   stores,
		lb:       lb,
		auth:     authService,
		registry: registry,
		now:      time.Now,
	}
}

type AdminCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ValidateGame checks a configuration without creating anything.
func (s *Service) ValidateGame(config GameConfiguration) error {
	if len(config.Tasks) < minTasks || len(config.Tasks) > maxTasks {
		return apperr.New(apperr.InvalidInput, "game must define between %d and %d tasks", minTasks, maxTasks)
	}
	numRequired := 0
	for _, t := range config.Tasks {
		if t.Required {
			numRequired++
		}
	}
	if numRequired == 0 {
		return apperr.New(apperr.InvalidInput, "game must define at least one required task")
	}
	if !config.EndTime.After(config.StartTime) {
		return apperr.New(apperr.InvalidInput, "game end time must be after start time")
	}
	if config.MinPlayers < 0 || config.MaxPlayers < config.MinPlayers {
		return apperr.New(apperr.InvalidInput, "invalid player bounds")
	}
	if config.MinPlayersToComplete < 0 || config.MinPlayersToComplete > config.MaxPlayers {
		return apperr.New(apperr.InvalidInput, "invalid completion threshold")
	}
	return nil
}

// CreateGame provisions the session: assigns task and response IDs,
// creates the host user and admin credential slots, persists the
// aggregate, and schedules the deferred start/end triggers. Returns the
// host's bearer tokens.
func (s *Service) CreateGame(config GameConfiguration, hostUsername, hostPassword string, admins []AdminCredential) (auth.Bearer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.stores.Stats.ReadGameStats(); err == nil {
		return auth.Bearer{}, apperr.New(apperr.IllegalState, "a game is already active")
	}
	if err := s.ValidateGame(config); err != nil {
		return auth.Bearer{}, err
	}
	if err := validateUsername(hostUsername); err != nil {
		return auth.Bearer{}, err
	}
	if len(admins) > maxAdmins {
		return auth.Bearer{}, apperr.New(apperr.InvalidInput, "at most %d admin credentials allowed", maxAdmins)
	}

	numRequired := 0
	for i := range config.Tasks {
		config.Tasks[i].ID = uuid.NewString()
		for j := range config.Tasks[i].Responses {
			config.Tasks[i].Responses[j].ID = uuid.NewString()
		}
		if config.Tasks[i].Required {
			numRequired++
		}
	}

	hostHash, err := s.auth.HashPassword(hostPassword)
	if err != nil {
		return auth.Bearer{}, err
	}
	adminRecords := make([]Admin, 0, len(admins))
	for _, a := range admins {
		if err := validateUsername(a.Username); err != nil {
			return auth.Bearer{}, err
		}
		hash, err := s.auth.HashPassword(a.Password)
		if err != nil {
			return auth.Bearer{}, err
		}
		adminRecords = append(adminRecords, Admin{Username: a.Username, Password: hash})
	}

	state := StateNotReady
	if config.MinPlayers == 0 {
		state = StateReady
	}
	stats := GameStats{
		ID:               uuid.NewString(),
		Host:             hostUsername,
		Configuration:    config,
		State:            state,
		Players:          []string{},
		Admins:           []string{},
		NumRequiredTasks: numRequired,
	}

	if err := s.stores.Users.WriteUser(User{
		ID:       uuid.NewString(),
		Username: hostUsername,
		Password: hostHash,
		Role:     RoleHost,
	}); err != nil {
		return auth.Bearer{}, err
	}
	if err := s.stores.Admins.CreateAdmins(adminRecords); err != nil {
		return auth.Bearer{}, err
	}
	if err := s.stores.Stats.CreateGameStats(stats); err != nil {
		return auth.Bearer{}, err
	}
	s.writeMetrics(stats)
	s.scheduleTriggers(config.StartTime, config.EndTime)

	log.Printf("Game %s created by %s (%d tasks, %d required)", stats.ID, hostUsername, len(config.Tasks), numRequired)
	return s.auth.IssueTokens(hostUsername, string(RoleHost))
}

// JoinGame admits a new participant. A username matching a
// pre-provisioned admin credential joins as an admin and binds that
// credential; anyone else joins as a player subject to maxPlayers.
func (s *Service) JoinGame(username, password string) (auth.Bearer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return auth.Bearer{}, err
	}
	if stats.Locked {
		return auth.Bearer{}, apperr.New(apperr.IllegalState, "game is locked")
	}
	if err := validateUsername(username); err != nil {
		return auth.Bearer{}, err
	}
	if _, exists, err := s.stores.Users.ReadOptionalUser(username); err != nil {
		return auth.Bearer{}, err
	} else if exists {
		return auth.Bearer{}, apperr.New(apperr.InvalidInput, "username %s is taken", username)
	}

	admin, isAdmin, err := s.stores.Admins.ReadOptionalAdmin(username)
	if err != nil {
		return auth.Bearer{}, err
	}
	if isAdmin {
		return s.joinAsAdmin(stats, admin, password)
	}
	return s.joinAsPlayer(stats, username, password)
}

func (s *Service) joinAsAdmin(stats GameStats, admin Admin, password string) (auth.Bearer, error) {
	if err := s.auth.VerifyPassword(admin.Password, password); err != nil {
		return auth.Bearer{}, err
	}
	if admin.BoundUserID != "" {
		return auth.Bearer{}, apperr.New(apperr.IllegalState, "admin credential already in use")
	}

	userID := uuid.NewString()
	if err := s.stores.Users.WriteUser(User{
		ID:       userID,
		Username: admin.Username,
		Password: admin.Password,
		Role:     RoleAdmin,
	}); err != nil {
		return auth.Bearer{}, err
	}
	admin.BoundUserID = userID
	if err := s.stores.Admins.WriteAdmin(admin); err != nil {
		return auth.Bearer{}, err
	}

	stats.Admins = append(stats.Admins, admin.Username)
	if err := s.stores.Stats.WriteGameStats(stats); err != nil {
		return auth.Bearer{}, err
	}
	s.writeMetrics(stats)
	s.pushGameUpdates(stats)

	log.Printf("Admin %s joined game %s", admin.Username, stats.ID)
	return s.auth.IssueTokens(admin.Username, string(RoleAdmin))
}

func (s *Service) joinAsPlayer(stats GameStats, username, password string) (auth.Bearer, error) {
	if len(stats.Players) >= stats.Configuration.MaxPlayers {
		return auth.Bearer{}, apperr.New(apperr.IllegalState, "game is full")
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return auth.Bearer{}, err
	}

	if err := s.stores.Users.WriteUser(User{
		ID:       uuid.NewString(),
		Username: username,
		Password: hash,
		Role:     RolePlayer,
	}); err != nil {
		return auth.Bearer{}, err
	}
	ranking, err := s.lb.NewPlayer(username)
	if err != nil {
		return auth.Bearer{}, err
	}
	if err := s.stores.Players.CreatePlayer(Player{
		Username:       username,
		Ranking:        ranking,
		TasksSubmitted: []TaskSubmission{},
	}); err != nil {
		return auth.Bearer{}, err
	}

	stats.Players = append(stats.Players, username)
	if stats.State != StateRunning {
		stats.State = readiness(stats.Configuration.MinPlayers, len(stats.Players))
	}
	if err := s.stores.Stats.WriteGameStats(stats); err != nil {
		return auth.Bearer{}, err
	}
	s.writeMetrics(stats)
	s.pushGameUpdates(stats)

	log.Printf("Player %s joined game %s (%d/%d players)", username, stats.ID, len(stats.Players), stats.Configuration.MaxPlayers)
	return s.auth.IssueTokens(username, string(RolePlayer))
}

// StartGame transitions ready -> running. Manual calls stamp the start
// time to now and cancel the deferred start trigger; the loser of the
// manual-vs-scheduled race observes IllegalState.
func (s *Service) StartGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startGame(false)
}

func (s *Service) startGame(scheduled bool) error {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return err
	}
	if stats.State != StateReady {
		return apperr.New(apperr.IllegalState, "game cannot start from state %s", stats.State)
	}

	stats.State = StateRunning
	if !scheduled {
		// Keep the scoring window consistent with the actual start,
		// without letting it pass the configured end.
		now := s.now()
		if now.Before(stats.Configuration.EndTime) {
			stats.Configuration.StartTime = now
		}
		s.cancelStartTrigger()
	}
	if err := s.stores.Stats.WriteGameStats(stats); err != nil {
		return err
	}
	s.writeMetrics(stats)
	s.pushGameUpdates(stats)

	log.Printf("Game %s started (scheduled=%t)", stats.ID, scheduled)
	return nil
}

func (s *Service) LockGame() error {
	return s.setLocked(true)
}

func (s *Service) UnlockGame() error {
	return s.setLocked(false)
}

func (s *Service) setLocked(locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return err
	}
	stats.Locked = locked
	if err := s.stores.Stats.WriteGameStats(stats); err != nil {
		return err
	}
	s.writeMetrics(stats)
	s.pushGameUpdates(stats)
	return nil
}

// LeaveGame removes the caller from the session. The host cannot leave;
// ending the game is the only way out for them.
func (s *Service) LeaveGame(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.stores.Users.ReadUser(username)
	if err != nil {
		return err
	}
	if user.Role == RoleHost {
		return apperr.New(apperr.IllegalState, "host cannot leave the game; end the game instead")
	}
	return s.dropParticipant(user)
}

// KickPlayer forcibly removes a player, notifies them, and closes their
// connection.
func (s *Service) KickPlayer(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.stores.Users.ReadUser(username)
	if err != nil {
		return err
	}
	if user.Role != RolePlayer {
		return apperr.New(apperr.InvalidInput, "%s is not a player", username)
	}
	if err := s.dropParticipant(user); err != nil {
		return err
	}
	s.registry.Send(wsPkg.ToUsers(username), wsPkg.Kicked("removed by a game host"))
	s.registry.Disconnect(wsPkg.ToUsers(username))
	return nil
}

// KickAllPlayers drops every player at once, resetting completion
// tracking and the leaderboard.
func (s *Service) KickAllPlayers() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return err
	}
	kicked := stats.Players

	if err := s.stores.Players.DropPlayers(); err != nil {
		return err
	}
	if err := s.lb.DropLeaderboard(); err != nil {
		return err
	}
	if err := s.stores.Users.DropUsers(kicked); err != nil {
		return err
	}

	stats.Players = []string{}
	stats.PlayersCompleted = 0
	stats.Completed = false
	if stats.State != StateRunning {
		stats.State = readiness(stats.Configuration.MinPlayers, 0)
	}
	if err := s.stores.Stats.WriteGameStats(stats); err != nil {
		return err
	}
	s.writeMetrics(stats)
	s.pushGameUpdates(stats)

	s.registry.Send(wsPkg.ToUsers(kicked...), wsPkg.Kicked("removed by a game host"))
	s.registry.Disconnect(wsPkg.ToUsers(kicked...))
	log.Printf("Kicked all %d players from game %s", len(kicked), stats.ID)
	return nil
}

// RemoveAdmin revokes an admin credential and drops its bound user.
func (s *Service) RemoveAdmin(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, err := s.stores.Users.ReadUser(username)
	if err != nil {
		return err
	}
	if user.Role != RoleAdmin {
		return apperr.New(apperr.InvalidInput, "%s is not an admin", username)
	}
	if err := s.dropParticipant(user); err != nil {
		return err
	}
	s.registry.Disconnect(wsPkg.ToUsers(username))
	return nil
}

// dropParticipant removes a non-host user and repairs the aggregate:
// membership lists, completion counters, and the ready/not-ready state.
// Caller must hold s.mu.
func (s *Service) dropParticipant(user User) error {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return err
	}

	switch user.Role {
	case RolePlayer:
		player, err := s.stores.Players.ReadPlayer(user.Username)
		if err != nil {
			return err
		}
		if player.Completed {
			stats.PlayersCompleted--
			if stats.PlayersCompleted < stats.Configuration.MinPlayersToComplete {
				stats.Completed = false
			}
		}
		stats.Players = remove(stats.Players, user.Username)
		if stats.State != StateRunning {
			stats.State = readiness(stats.Configuration.MinPlayers, len(stats.Players))
		}
		if err := s.stores.Players.DropPlayer(user.Username); err != nil {
			return err
		}
		if err := s.lb.DropPlayer(user.Username); err != nil {
			return err
		}
	case RoleAdmin:
		stats.Admins = remove(stats.Admins, user.Username)
		if err := s.stores.Admins.DropAdmin(user.Username); err != nil {
			return err
		}
	}

	if err := s.stores.Users.DropUser(user.Username); err != nil {
		return err
	}
	if err := s.stores.Stats.WriteGameStats(stats); err != nil {
		return err
	}
	s.writeMetrics(stats)
	s.pushGameUpdates(stats)

	log.Printf("%s %s removed from game %s", user.Role, user.Username, stats.ID)
	return nil
}

// EndGame archives the session snapshot into bounded history, clears all
// per-session storage, broadcasts the terminal notification, and
// disconnects everyone. Valid only while running.
func (s *Service) EndGame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endGame(false)
}

func (s *Service) endGame(scheduled bool) error {
	stats, err := s.stores.Stats.ReadGameStats()
	if err != nil {
		return err
	}
	if stats.State != StateRunning {
		return apperr.New(apperr.IllegalState, "game cannot end from state %s", stats.State)
	}

	entries, err := s.lb.ReadLeaderboard()
	if err != nil {
		return err
	}
	stats.State = StateEnded
	snapshot := Game{GameStats: stats, Leaderboard: toLeaderboardEntries(entries)}
	if err := s.stores.History.PushGame(snapshot); err != nil {
		return err
	}

	if err := s.stores.Admins.DropAdmins(); err != nil {
		return err
	}
	if err := s.stores.Stats.DropGameStats(); err != nil {
		return err
	}
	if err := s.lb.DropLeaderboard(); err != nil {
		return err
	}
	if err := s.stores.Players.DropPlayers(); err != nil {
		return err
	}
	if err := s.stores.Users.DropAllUsers(); err != nil {
		return err
	}
	if err := s.stores.Metrics.WriteAppMetrics(AppMetrics{GameState: "no-game"}); err != nil {
		return err
	}

	s.cancelStartTrigger()
	if !scheduled {
		s.cancelEndTrigger()
	}

	s.registry.Send(wsPkg.ToAll(), wsPkg.GameEnded(snapshot))
	s.registry.Disconnect(wsPkg.ToAll())

	log.Printf("Game %s ended (scheduled=%t)", stats.ID, scheduled)
	return nil
}

// Close cancels any pending scheduled triggers.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelStartTrigger()
	s.cancelEndTrigger()
}

// == Helpers == //

func validateUsername(username string) error {
	if len(username) < 8 || len(username) > 15 {
		return apperr.New(apperr.InvalidInput, "username must be between 8 and 15 characters")
	}
	return nil
}

func readiness(minPlayers, numPlayers int) GameState {
	if numPlayers >= minPlayers {
		return StateReady
	}
	return StateNotReady
}

func remove(list []string, value string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != value {
			out = append(out, v)
		}
	}
	return out
}

func toLeaderboardEntries(entries []leaderboard.Entry) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(entries))
	for i, e := range entries {
		out[i] = LeaderboardEntry{Username: e.Username, Score: e.Score}
	}
	return out
}

func (s *Service) writeMetrics(stats GameStats) {
	err := s.stores.Metrics.WriteAppMetrics(AppMetrics{
		NumPlayers: len(stats.Players),
		NumAdmins:  len(stats.Admins),
		GameState:  string(stats.State),
		GameLocked: stats.Locked,
	})
	if err != nil {
		log.Printf("Failed to write app metrics: %v", err)
	}
}
