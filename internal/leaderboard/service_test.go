package leaderboard

import (
	"testing"

	"github.com/cloudydaiyz/ispy-backend/internal/apperr"
)

func TestNewPlayerRanks(t *testing.T) {
	m := NewMemory()

	rank, err := m.NewPlayer("alice")
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	if rank != 1 {
		t.Errorf("rank = %d, want 1", rank)
	}

	// Fresh players rank behind existing ones at the same score.
	rank, err = m.NewPlayer("bob")
	if err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	if rank != 2 {
		t.Errorf("rank = %d, want 2", rank)
	}

	if _, err := m.NewPlayer("alice"); !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("expected InvalidInput for duplicate, got %v", err)
	}
}

func TestUpdatePlayerScoreReorders(t *testing.T) {
	m := NewMemory()
	for _, u := range []string{"alice", "bob", "carol"} {
		if _, err := m.NewPlayer(u); err != nil {
			t.Fatalf("NewPlayer(%s) failed: %v", u, err)
		}
	}

	if rank, err := m.UpdatePlayerScore("carol", 10); err != nil || rank != 1 {
		t.Fatalf("UpdatePlayerScore = (%d, %v), want (1, nil)", rank, err)
	}
	if rank, err := m.UpdatePlayerScore("bob", 5); err != nil || rank != 2 {
		t.Fatalf("UpdatePlayerScore = (%d, %v), want (2, nil)", rank, err)
	}
	if rank, err := m.UpdatePlayerScore("alice", -3); err != nil || rank != 3 {
		t.Fatalf("UpdatePlayerScore = (%d, %v), want (3, nil)", rank, err)
	}

	entries, err := m.ReadLeaderboard()
	if err != nil {
		t.Fatalf("ReadLeaderboard failed: %v", err)
	}
	want := []Entry{{"carol", 10}, {"bob", 5}, {"alice", -3}}
	if len(entries) != len(want) {
		t.Fatalf("entries = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entries[%d] = %v, want %v", i, entries[i], want[i])
		}
	}

	if _, err := m.UpdatePlayerScore("nobody", 1); !apperr.Is(err, apperr.InvalidInput) {
		t.Fatalf("expected InvalidInput for unknown player, got %v", err)
	}
}

func TestTiesKeepInsertionOrder(t *testing.T) {
	m := NewMemory()
	for _, u := range []string{"alice", "bob"} {
		if _, err := m.NewPlayer(u); err != nil {
			t.Fatalf("NewPlayer(%s) failed: %v", u, err)
		}
	}

	// bob catches up to alice's score; alice keeps the better rank.
	if _, err := m.UpdatePlayerScore("alice", 5); err != nil {
		t.Fatalf("UpdatePlayerScore failed: %v", err)
	}
	if rank, err := m.UpdatePlayerScore("bob", 5); err != nil || rank != 2 {
		t.Fatalf("bob rank = (%d, %v), want (2, nil)", rank, err)
	}
	if _, rank, err := m.GetPlayerInfo("alice"); err != nil || rank != 1 {
		t.Fatalf("alice rank = (%d, %v), want (1, nil)", rank, err)
	}
}

func TestRanksFormPermutation(t *testing.T) {
	m := NewMemory()
	users := []string{"alice", "bob", "carol", "dave"}
	scores := []int{7, 7, -2, 11}
	for i, u := range users {
		if _, err := m.NewPlayer(u); err != nil {
			t.Fatalf("NewPlayer(%s) failed: %v", u, err)
		}
		if _, err := m.UpdatePlayerScore(u, scores[i]); err != nil {
			t.Fatalf("UpdatePlayerScore(%s) failed: %v", u, err)
		}
	}

	seen := make(map[int]string)
	for _, u := range users {
		_, rank, err := m.GetPlayerInfo(u)
		if err != nil {
			t.Fatalf("GetPlayerInfo(%s) failed: %v", u, err)
		}
		if rank < 1 || rank > len(users) {
			t.Errorf("rank of %s = %d, out of range", u, rank)
		}
		if prev, dup := seen[rank]; dup {
			t.Errorf("rank %d assigned to both %s and %s", rank, prev, u)
		}
		seen[rank] = u
	}
}

func TestDropPlayerClosesRankGap(t *testing.T) {
	m := NewMemory()
	for _, u := range []string{"alice", "bob", "carol"} {
		if _, err := m.NewPlayer(u); err != nil {
			t.Fatalf("NewPlayer(%s) failed: %v", u, err)
		}
	}
	if _, err := m.UpdatePlayerScore("alice", 10); err != nil {
		t.Fatalf("UpdatePlayerScore failed: %v", err)
	}
	if _, err := m.UpdatePlayerScore("bob", 5); err != nil {
		t.Fatalf("UpdatePlayerScore failed: %v", err)
	}

	if err := m.DropPlayer("alice"); err != nil {
		t.Fatalf("DropPlayer failed: %v", err)
	}
	if _, rank, err := m.GetPlayerInfo("bob"); err != nil || rank != 1 {
		t.Fatalf("bob rank = (%d, %v), want (1, nil)", rank, err)
	}

	// Dropping an absent player is a no-op.
	if err := m.DropPlayer("alice"); err != nil {
		t.Fatalf("DropPlayer of absent player failed: %v", err)
	}
}

func TestDropLeaderboard(t *testing.T) {
	m := NewMemory()
	if _, err := m.NewPlayer("alice"); err != nil {
		t.Fatalf("NewPlayer failed: %v", err)
	}
	if err := m.DropLeaderboard(); err != nil {
		t.Fatalf("DropLeaderboard failed: %v", err)
	}
	entries, err := m.ReadLeaderboard()
	if err != nil {
		t.Fatalf("ReadLeaderboard failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %v, want empty", entries)
	}
	// A reset leaderboard accepts previous usernames again.
	if rank, err := m.NewPlayer("alice"); err != nil || rank != 1 {
		t.Fatalf("NewPlayer after reset = (%d, %v), want (1, nil)", rank, err)
	}
}
