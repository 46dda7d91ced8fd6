// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"net/http"
)

// DBPinger は死活監視ハンドラーが必要とするDB接続確認のインターフェース。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

// CanaryHandler は死活監視のHTTPハンドラー。
type CanaryHandler struct {
	db DBPinger
}

// NewCanaryHandler はCanaryHandlerを生成する。
func NewCanaryHandler(db DBPinger) *CanaryHandler {
	return &CanaryHandler{db: db}
}

// Check はDB接続を確認して200を返す。
// GET /v1.0/canary/
func (h *CanaryHandler) Check(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, statusResponse{Status: "unhealthy"})
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
