// Package slog adapts a log/slog handler to the logger.Logger interface.
package slog

import (
	"log/slog"
)

type Handler struct {
	logger *slog.Logger
}

func New(h slog.Handler) *Handler {
	return &Handler{logger: slog.New(h)}
}

func (handler *Handler) Error(msg string, args ...any) {
	handler.logger.Error(msg, args...)
}

func (handler *Handler) Warn(msg string, args ...any) {
	handler.logger.Warn(msg, args...)
}

func (handler *Handler) Info(msg string, args ...any) {
	handler.logger.Info(msg, args...)
}

func (handler *Handler) Debug(msg string, args ...any) {
	handler.logger.Debug(msg, args...)
}
