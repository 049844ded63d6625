package leaderboard

import (
	"sort"
	"sync"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
)

type Entry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Store maintains a rank-ordered set of (username, score). Higher scores
// rank better; ranks are 1-based and recomputed on every score change.
type Store interface {
	// NewPlayer inserts the player with score 0 and returns their rank.
	NewPlayer(username string) (int, error)
	// UpdatePlayerScore applies delta to the player's score and returns
	// their new rank.
	UpdatePlayerScore(username string, delta int) (int, error)
	GetPlayerInfo(username string) (Entry, int, error)
	ReadLeaderboard() ([]Entry, error)
	DropPlayer(username string) error
	DropLeaderboard() error
}

// Memory keeps the leaderboard as a sorted slice. Ties rank in insertion
// order, which keeps ranks stable across equal-score updates.
type Memory struct {
	mu      sync.Mutex
	entries []memEntry
}

type memEntry struct {
	Entry
	seq int
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) NewPlayer(username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.Username == username {
			return 0, apperr.New(apperr.InvalidInput, "player %s already on leaderboard", username)
		}
	}
	seq := 0
	for _, e := range m.entries {
		if e.seq >= seq {
			seq = e.seq + 1
		}
	}
	m.entries = append(m.entries, memEntry{Entry: Entry{Username: username}, seq: seq})
	m.sortLocked()
	return m.rankLocked(username), nil
}

func (m *Memory) UpdatePlayerScore(username string, delta int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	found := false
	for i := range m.entries {
		if m.entries[i].Username == username {
			m.entries[i].Score += delta
			found = true
			break
		}
	}
	if !found {
		return 0, apperr.New(apperr.InvalidInput, "player %s not on leaderboard", username)
	}
	m.sortLocked()
	return m.rankLocked(username), nil
}

func (m *Memory) GetPlayerInfo(username string) (Entry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.Username == username {
			return e.Entry, i + 1, nil
		}
	}
	return Entry{}, 0, apperr.New(apperr.InvalidInput, "player %s not on leaderboard", username)
}

func (m *Memory) ReadLeaderboard() ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		entries[i] = e.Entry
	}
	return entries, nil
}

func (m *Memory) DropPlayer(username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, e := range m.entries {
		if e.Username == username {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) DropLeaderboard() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = nil
	return nil
}

// Descending by score; equal scores keep insertion order.
func (m *Memory) sortLocked() {
	sort.SliceStable(m.entries, func(i, j int) bool {
		if m.entries[i].Score != m.entries[j].Score {
			return m.entries[i].Score > m.entries[j].Score
		}
		return m.entries[i].seq < m.entries[j].seq
	})
}

func (m *Memory) rankLocked(username string) int {
	for i, e := range m.entries {
		if e.Username == username {
			return i + 1
		}
	}
	return 0
}
