// Package auth manages console accounts and their sessions. Accounts are
// local to the console database; the remote service never sees them.
package auth

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Console roles. Staff manage orders end to end; operators work the
// orders assigned to them.
const (
	RoleStaff    = "staff"
	RoleOperator = "operator"
)

// SessionTTL is how long a session lives without activity. Each
// authenticated request slides the expiry forward by this much.
const SessionTTL = 24 * time.Hour

var ErrInvalidCredentials = errors.New("invalid username or password")

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether a password matches its stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateToken produces a random session token.
func GenerateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CreateSession opens a session for a user and returns its token and
// expiry. Expired sessions are swept opportunistically.
func CreateSession(db *sql.DB, userID int) (string, time.Time, error) {
	db.Exec("DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")

	token := GenerateToken()
	expires := time.Now().Add(SessionTTL)
	_, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expires.Format("2006-01-02 15:04:05"))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// SessionUser resolves a session token to its user. Expired tokens and
// deactivated accounts both fail.
func SessionUser(db *sql.DB, token string) (userID int, username, role string, err error) {
	err = db.QueryRow(`SELECT u.id, u.username, u.role
		FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP AND u.active = 1`, token).
		Scan(&userID, &username, &role)
	return
}

// ExtendSession slides a session's expiry forward and returns the new
// expiry for the cookie.
func ExtendSession(db *sql.DB, token string) time.Time {
	expires := time.Now().Add(SessionTTL)
	db.Exec("UPDATE sessions SET expires_at = ? WHERE token = ?",
		expires.Format("2006-01-02 15:04:05"), token)
	return expires
}

// DeleteSession removes a session on logout.
func DeleteSession(db *sql.DB, token string) {
	db.Exec("DELETE FROM sessions WHERE token = ?", token)
}

// Authenticate checks a username/password pair against the users table.
func Authenticate(db *sql.DB, username, password string) (userID int, displayName, role string, err error) {
	var hash string
	var active int
	err = db.QueryRow("SELECT id, password_hash, display_name, role, active FROM users WHERE username = ?", username).
		Scan(&userID, &hash, &displayName, &role, &active)
	if err != nil || !CheckPassword(hash, password) {
		return 0, "", "", ErrInvalidCredentials
	}
	if active == 0 {
		return 0, "", "", errors.New("account deactivated")
	}
	return userID, displayName, role, nil
}
