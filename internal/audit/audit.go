// Package audit records who did what in the console. Entries live in the
// console's own database; the remote service keeps its own history.
package audit

import (
	"database/sql"
	"log"

	"cutplan/internal/websocket"
)

// Action constants.
const (
	ActionCreate     = "create"
	ActionUpdate     = "update"
	ActionTransition = "transition"
	ActionExport     = "export"
	ActionLogin      = "login"
	ActionLogout     = "logout"
)

// Entry is one audit row.
type Entry struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Entity    string `json:"entity"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// Log writes an entry and notifies connected consoles. A failed write is
// logged and swallowed: auditing never blocks the operation it describes.
func Log(db *sql.DB, hub *websocket.Hub, username, action, entity, recordID, summary string) {
	_, err := db.Exec("INSERT INTO audit_log (username, action, entity, record_id, summary) VALUES (?, ?, ?, ?, ?)",
		username, action, entity, recordID, summary)
	if err != nil {
		log.Printf("audit: %v", err)
	}
	if hub != nil {
		hub.BroadcastChange(entity, action, recordID)
	}
}

// List returns the most recent entries, newest first.
func List(db *sql.DB, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := db.Query(`SELECT id, username, action, entity, record_id, summary, created_at
		FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Username, &e.Action, &e.Entity, &e.RecordID, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
