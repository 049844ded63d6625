package game

// Storage ports consumed by the session core. All read operations return
// deep copies; callers never observe aliased mutable state shared with
// the store.

type UserStore interface {
	ReadUser(username string) (User, error)
	// ReadOptionalUser returns false instead of failing when absent.
	ReadOptionalUser(username string) (User, bool, error)
	WriteUser(user User) error
	DropUser(username string) error
	DropUsers(usernames []string) error
	DropAllUsers() error
}

type PlayerStore interface {
	ReadPlayer(username string) (Player, error)
	CreatePlayer(player Player) error
	WritePlayer(player Player) error
	PushTaskSubmission(username string, submission TaskSubmission) error
	DropPlayer(username string) error
	DropPlayers() error
}

type AdminStore interface {
	ReadAdmin(username string) (Admin, error)
	ReadOptionalAdmin(username string) (Admin, bool, error)
	CreateAdmins(admins []Admin) error
	WriteAdmin(admin Admin) error
	DropAdmin(username string) error
	DropAdmins() error
}

type GameStatsStore interface {
	ReadGameStats() (GameStats, error)
	CreateGameStats(stats GameStats) error
	WriteGameStats(stats GameStats) error
	DropGameStats() error
}

type GameHistoryStore interface {
	ReadGameHistory() ([]Game, error)
	// PushGame appends a finished game, evicting the oldest entry once
	// the retained count exceeds HistoryCapacity.
	PushGame(result Game) error
}

type AppMetricsStore interface {
	ReadAppMetrics() (AppMetrics, error)
	WriteAppMetrics(metrics AppMetrics) error
}

// HistoryCapacity bounds the number of archived games.
const HistoryCapacity = 5

// Stores bundles the storage ports the session core operates on.
type Stores struct {
	Users   UserStore
	Players PlayerStore
	Admins  AdminStore
	Stats   GameStatsStore
	History GameHistoryStore
	Metrics AppMetricsStore
}
