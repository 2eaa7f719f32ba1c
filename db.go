package main

import (
	"database/sql"
	"log"

	_ "modernc.org/sqlite"

	"cutplan/internal/auth"
)

// db holds console-owned data only: accounts, sessions and the audit
// trail. Orders and stock never land here; the remote service owns them.
var db *sql.DB

func initDB(path string) error {
	var err error
	db, err = sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT,
			role TEXT DEFAULT 'operator' CHECK(role IN ('staff','operator')),
			active INTEGER DEFAULT 1,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL,
			action TEXT NOT NULL,
			entity TEXT NOT NULL,
			record_id TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
	}
	for _, q := range ddl {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// seedDB creates the initial staff account when the users table is empty.
func seedDB() {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil || count > 0 {
		return
	}
	hash, err := auth.HashPassword("admin")
	if err != nil {
		log.Printf("seed: hash failed: %v", err)
		return
	}
	_, err = db.Exec(`INSERT INTO users (username, password_hash, display_name, role) VALUES ('admin', ?, 'Admin', 'staff')`, hash)
	if err != nil {
		log.Printf("seed: %v", err)
		return
	}
	log.Print("seeded initial staff account 'admin' (change the password)")
}
