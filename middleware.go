package main

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"time"

	"cutplan/internal/auth"
	"cutplan/internal/workflow"
)

type contextKey string

const (
	ctxUserID   contextKey = "userID"
	ctxUsername contextKey = "username"
	ctxRole     contextKey = "role"
)

const sessionCookie = "cutplan_session"

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

func requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/auth/login" || path == "/auth/logout" {
			next.ServeHTTP(w, r)
			return
		}

		cookie, err := r.Cookie(sessionCookie)
		if err != nil {
			jsonErr(w, "Unauthorized", 401)
			return
		}
		userID, username, role, err := auth.SessionUser(db, cookie.Value)
		if err != nil {
			jsonErr(w, "Unauthorized", 401)
			return
		}

		// Sliding window: each authenticated request pushes expiry forward.
		expires := auth.ExtendSession(db, cookie.Value)
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    cookie.Value,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			Expires:  expires,
		})

		ctx := context.WithValue(r.Context(), ctxUserID, userID)
		ctx = context.WithValue(ctx, ctxUsername, username)
		ctx = context.WithValue(ctx, ctxRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestActor builds the workflow actor for the authenticated request.
func requestActor(r *http.Request) workflow.Actor {
	var actor workflow.Actor
	if id, ok := r.Context().Value(ctxUserID).(int); ok {
		actor.UserID = strconv.Itoa(id)
	}
	actor.Username, _ = r.Context().Value(ctxUsername).(string)
	role, _ := r.Context().Value(ctxRole).(string)
	actor.Staff = role == auth.RoleStaff
	return actor
}

func isStaff(r *http.Request) bool {
	role, _ := r.Context().Value(ctxRole).(string)
	return role == auth.RoleStaff
}

func currentUsername(r *http.Request) string {
	u, _ := r.Context().Value(ctxUsername).(string)
	if u == "" {
		return "system"
	}
	return u
}
