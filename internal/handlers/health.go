package handlers

import "net/http"

// Healthz reports liveness for probes and the public root route.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
