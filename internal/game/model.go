package game

import "time"

type Role string

const (
	RolePlayer Role = "player"
	RoleHost   Role = "host"
	RoleAdmin  Role = "admin"
)

type GameState string

const (
	StateNotReady GameState = "not-ready"
	StateReady    GameState = "ready"
	StateRunning  GameState = "running"
	StateEnded    GameState = "ended"
)

// User holds the credentials of one participant for the current session.
// Users are temporary; they are deleted when the user leaves, is kicked,
// or the game ends.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"-"` // bcrypt hash
	Role     Role   `json:"role"`
}

// Admin is a pre-provisioned credential slot. It becomes bound to a user
// once someone joins with matching credentials; a slot binds at most once.
type Admin struct {
	Username    string `json:"username"`
	Password    string `json:"-"` // bcrypt hash
	BoundUserID string `json:"boundUserId,omitempty"`
}

type TaskResponse struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Correct bool   `json:"correct"`
}

type Task struct {
	ID                        string         `json:"id"`
	Title                     string         `json:"title"`
	Prompt                    string         `json:"prompt"`
	Responses                 []TaskResponse `json:"responses"`
	ResponseType              string         `json:"responseType"`
	Required                  bool           `json:"required"`
	SuccessValue              int            `json:"successValue"`
	ScaleSuccessValueOverTime bool           `json:"scaleSuccessValueOverTime"`
	FailValue                 int            `json:"failValue"`
	ScaleFailValueOverTime    bool           `json:"scaleFailValueOverTime"`
	SuccessMessage            string         `json:"successMessage,omitempty"`
	FailMessage               string         `json:"failMessage,omitempty"`
}

type GameConfiguration struct {
	Tasks                []Task    `json:"tasks"`
	StartTime            time.Time `json:"startTime"`
	EndTime              time.Time `json:"endTime"`
	MinPlayers           int       `json:"minPlayers"`
	MaxPlayers           int       `json:"maxPlayers"`
	MinPlayersToComplete int       `json:"minPlayersToComplete"`
}

// GameStats is the session aggregate. There is a single instance per
// active session, created by CreateGame and destroyed by EndGame.
type GameStats struct {
	ID               string            `json:"id"`
	Host             string            `json:"host"`
	Configuration    GameConfiguration `json:"configuration"`
	State            GameState         `json:"state"`
	Locked           bool              `json:"locked"`
	Players          []string          `json:"players"`
	Admins           []string          `json:"admins"`
	NumRequiredTasks int               `json:"numRequiredTasks"`
	PlayersCompleted int               `json:"playersCompleted"`
	Completed        bool              `json:"completed"`
}

// TaskSubmission is append-only per player; never mutated after creation.
type TaskSubmission struct {
	TaskID      string         `json:"taskId"`
	Correct     bool           `json:"correct"`
	Title       string         `json:"title"`
	Required    bool           `json:"required"`
	SubmitTime  time.Time      `json:"submitTime"`
	Responses   []TaskResponse `json:"responses"`
	PointsDelta int            `json:"pointsDelta"`
	Message     string         `json:"message,omitempty"`
}

type Player struct {
	Username       string           `json:"username"`
	Points         int              `json:"points"`
	Ranking        int              `json:"ranking"`
	Completed      bool             `json:"completed"`
	TasksSubmitted []TaskSubmission `json:"tasksSubmitted"`
}

type LeaderboardEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Game is the host-facing snapshot of a session, and what gets archived
// into game history when the session ends.
type Game struct {
	GameStats   GameStats          `json:"gameStats"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
}

type AppMetrics struct {
	NumPlayers int    `json:"numPlayers"`
	NumAdmins  int    `json:"numAdmins"`
	GameState  string `json:"gameState"`
	GameLocked bool   `json:"gameLocked"`
}

// PublicTask is the player-facing view of a task; it omits which
// responses are correct.
type PublicTask struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Prompt       string   `json:"prompt"`
	Responses    []string `json:"responses"`
	ResponseIDs  []string `json:"responseIds"`
	ResponseType string   `json:"responseType"`
	Required     bool     `json:"required"`
	SuccessValue int      `json:"successValue"`
	FailValue    int      `json:"failValue"`
}

// PublicGameStats is the player-facing view of the session; it omits the
// task answer key and admin roster.
type PublicGameStats struct {
	ID               string       `json:"id"`
	Host             string       `json:"host"`
	Tasks            []PublicTask `json:"tasks"`
	StartTime        time.Time    `json:"startTime"`
	EndTime          time.Time    `json:"endTime"`
	State            GameState    `json:"state"`
	Locked           bool         `json:"locked"`
	Players          []string     `json:"players"`
	PlayersCompleted int          `json:"playersCompleted"`
	Completed        bool         `json:"completed"`
}

func publicTask(t Task) PublicTask {
	pub := PublicTask{
		ID:           t.ID,
		Title:        t.Title,
		Prompt:       t.Prompt,
		ResponseType: t.ResponseType,
		Required:     t.Required,
		SuccessValue: t.SuccessValue,
		FailValue:    t.FailValue,
	}
	for _, r := range t.Responses {
		pub.Responses = append(pub.Responses, r.Content)
		pub.ResponseIDs = append(pub.ResponseIDs, r.ID)
	}
	return pub
}

func publicGameStats(stats GameStats) PublicGameStats {
	pub := PublicGameStats{
		ID:               stats.ID,
		Host:             stats.Host,
		StartTime:        stats.Configuration.StartTime,
		EndTime:          stats.Configuration.EndTime,
		State:            stats.State,
		Locked:           stats.Locked,
		Players:          stats.Players,
		PlayersCompleted: stats.PlayersCompleted,
		Completed:        stats.Completed,
	}
	for _, t := range stats.Configuration.Tasks {
		pub.Tasks = append(pub.Tasks, publicTask(t))
	}
	return pub
}
