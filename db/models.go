package db

// ArchivedGame is one row of the game_history table. The full session
// snapshot is serialized into the snapshot JSON column.
type ArchivedGame struct {
	ID           int64  `json:"id" db:"id"`
	HostUsername string `json:"host_username" db:"host_username"`
	Snapshot     []byte `json:"snapshot" db:"snapshot"`
	ArchivedAt   string `json:"archived_at" db:"archived_at"`
}
