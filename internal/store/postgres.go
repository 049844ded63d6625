package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cloudydaiyz/ispy-backend/db"
	"github.com/cloudydaiyz/ispy-backend/internal/game"
)

// PostgresHistory archives finished games in the game_history table,
// keeping at most game.HistoryCapacity rows.
type PostgresHistory struct {
	db *sql.DB
}

func NewPostgresHistory(db *sql.DB) *PostgresHistory {
	return &PostgresHistory{db: db}
}

func (s *PostgresHistory) ReadGameHistory() ([]game.Game, error) {
	rows, err := s.db.Query(`
		SELECT id, host_username, snapshot, archived_at
		FROM game_history
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read game history: %w", err)
	}
	defer rows.Close()

	var history []game.Game
	for rows.Next() {
		var row db.ArchivedGame
		if err := rows.Scan(&row.ID, &row.HostUsername, &row.Snapshot, &row.ArchivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan game history row: %w", err)
		}
		var result game.Game
		if err := json.Unmarshal(row.Snapshot, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game snapshot: %w", err)
		}
		history = append(history, result)
	}
	return history, rows.Err()
}

func (s *PostgresHistory) PushGame(result game.Game) error {
	snapshot, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal game snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO game_history (host_username, snapshot, archived_at) VALUES ($1, $2, $3)",
		result.GameStats.Host, snapshot, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to archive game: %w", err)
	}

	// Evict oldest rows beyond capacity.
	_, err = tx.Exec(`
		DELETE FROM game_history
		WHERE id NOT IN (
			SELECT id FROM game_history ORDER BY id DESC LIMIT $1
		)
	`, game.HistoryCapacity)
	if err != nil {
		return fmt.Errorf("failed to trim game history: %w", err)
	}

	return tx.Commit()
}
