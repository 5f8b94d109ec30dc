package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// HandlerSet fans log records out to multiple underlying btclog handlers,
// enabling dual-stream logging: human-readable console output on stderr
// plus a rotating log file. stderr is the only safe console stream here
// because stdout carries the MCP wire protocol.
type HandlerSet struct {
	level btclog.Level
	set   []btclogv2.Handler
}

// NewHandlerSet constructs a HandlerSet from the given handlers, all
// initialized to the Info level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{
		set:   handlers,
		level: btclog.LevelInfo,
	}
	h.SetLevel(h.level)

	return h
}

// Enabled reports whether all underlying handlers handle records at the
// given level.
//
// NOTE: part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every underlying handler.
//
// NOTE: part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new handler set whose handlers carry the given
// attributes.
//
// NOTE: part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}

	return newSet
}

// WithGroup returns a new handler set with the given group appended.
//
// NOTE: part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithGroup(name)
	}

	return newSet
}

// SubSystem creates a new handler set tagged with the given sub-system.
//
// NOTE: part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	newSet := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.SubSystem(tag)
	}

	return newSet
}

// SetLevel changes the logging level on every underlying handler.
//
// NOTE: part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the current logging level.
//
// NOTE: part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// WithPrefix returns a copy of the handler set that prefixes each log
// message with the given string.
//
// NOTE: part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	newSet := &HandlerSet{
		level: h.level,
		set:   make([]btclogv2.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithPrefix(prefix)
	}

	return newSet
}

var _ btclogv2.Handler = (*HandlerSet)(nil)

// slogSet is the plain-slog projection of a HandlerSet, produced by
// WithAttrs and WithGroup which return slog.Handlers rather than btclog
// handlers.
type slogSet struct {
	set []slog.Handler
}

// Enabled reports whether all underlying handlers handle records at the
// given level.
//
// NOTE: part of the slog.Handler interface.
func (s *slogSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range s.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every underlying handler.
//
// NOTE: part of the slog.Handler interface.
func (s *slogSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range s.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new handler set whose handlers carry the given
// attributes.
//
// NOTE: part of the slog.Handler interface.
func (s *slogSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(s.set))}
	for i, handler := range s.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}

	return newSet
}

// WithGroup returns a new handler set with the given group appended.
//
// NOTE: part of the slog.Handler interface.
func (s *slogSet) WithGroup(name string) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(s.set))}
	for i, handler := range s.set {
		newSet.set[i] = handler.WithGroup(name)
	}

	return newSet
}

var _ slog.Handler = (*slogSet)(nil)
