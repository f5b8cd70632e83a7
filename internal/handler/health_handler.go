package handler

import "net/http"

type healthResponse struct {
	Status string `json:"status"`
}

// Health はヘルスチェックに応答する。
// GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
