// Package logx adds chat-specific fields to pslog loggers.
package logx

import (
	"context"

	"pkt.systems/pslog"
)

type contextKey int

const (
	requestKey contextKey = iota
	chatKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithSlot annotates the logger with a slot position and its model.
func WithSlot(log pslog.Logger, index int, modelID string) pslog.Logger {
	if index > 0 {
		log = log.With("slot", index)
	}
	return WithModel(log, modelID)
}

// WithModel annotates the logger with a model id when present.
func WithModel(log pslog.Logger, modelID string) pslog.Logger {
	if modelID != "" {
		log = log.With("model", modelID)
	}
	return log
}

// WithRequest annotates the context logger with the request id, unless the
// context already carries the same id.
func WithRequest(ctx context.Context, requestID string) pslog.Logger {
	log := pslog.Ctx(ctx)
	if requestID == "" {
		return log
	}
	if current, ok := ctx.Value(requestKey).(string); ok && current == requestID {
		return log
	}
	return log.With("request", requestID)
}

// ContextWithRequestLogger attaches the logger and request marker to ctx.
func ContextWithRequestLogger(ctx context.Context, log pslog.Logger, requestID string) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestKey, requestID)
}

// ContextWithChat binds a logger annotated with the chat id to ctx.
func ContextWithChat(ctx context.Context, chatID string) context.Context {
	if chatID == "" {
		return ctx
	}
	if current, ok := ctx.Value(chatKey).(string); ok && current == chatID {
		return ctx
	}
	ctx = pslog.ContextWithLogger(ctx, pslog.Ctx(ctx).With("chat", chatID))
	return context.WithValue(ctx, chatKey, chatID)
}
