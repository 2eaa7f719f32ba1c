package main

import (
	"net/http"
	"strconv"

	"cutplan/internal/audit"
)

func handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if !isStaff(r) {
		jsonErr(w, "Staff access required", 403)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := audit.List(db, limit)
	if err != nil {
		jsonErr(w, "Failed to read audit log", 500)
		return
	}
	jsonResp(w, entries)
}
