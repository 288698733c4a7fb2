package api

import (
	"go.uber.org/zap"

	"loto-rfid-backend/internal/store"
)

// StatusReader exposes the last STATUS value sent to each module.
type StatusReader interface {
	LastStatus(moduleCode string) (string, bool)
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store  store.Store
	status StatusReader
	log    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, status StatusReader, log *zap.Logger) *Handler {
	return &Handler{
		store:  s,
		status: status,
		log:    log,
	}
}
