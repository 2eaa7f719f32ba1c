package main

import (
	"net/http"

	"cutplan/internal/audit"
	"cutplan/internal/auth"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	id, displayName, role, err := auth.Authenticate(db, req.Username, req.Password)
	if err != nil {
		jsonErr(w, "Invalid username or password", 401)
		return
	}

	token, expires, err := auth.CreateSession(db, id)
	if err != nil {
		jsonErr(w, "Failed to create session", 500)
		return
	}
	db.Exec("UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?", id)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})

	audit.Log(db, hub, req.Username, audit.ActionLogin, "session", "", "logged in")
	jsonResp(w, UserResponse{ID: id, Username: req.Username, DisplayName: displayName, Role: role})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if _, username, _, err := auth.SessionUser(db, cookie.Value); err == nil {
			audit.Log(db, hub, username, audit.ActionLogout, "session", "", "logged out")
		}
		auth.DeleteSession(db, cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	jsonResp(w, map[string]string{"status": "ok"})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := r.Context().Value(ctxUserID).(int)
	if !ok {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	var username, displayName, role string
	err := db.QueryRow("SELECT username, display_name, role FROM users WHERE id = ?", id).
		Scan(&username, &displayName, &role)
	if err != nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	jsonResp(w, UserResponse{ID: id, Username: username, DisplayName: displayName, Role: role})
}
