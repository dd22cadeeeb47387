package log

import (
	"context"
	"io"
	"log/slog"

	"github.com/sirupsen/logrus"
)

// patternHandler renders slog records through a logrus logger so the
// pattern formatter applies to the standard slog API.
type patternHandler struct {
	logger *logrus.Logger
	level  slog.Leveler
	fields logrus.Fields
	group  string
}

func newPatternHandler(w io.Writer, level slog.Leveler, pattern, timeLayout string) *patternHandler {
	if pattern == "" {
		pattern = defaultPattern
	}
	if timeLayout == "" {
		timeLayout = defaultTime
	}

	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.TraceLevel)
	l.SetFormatter(&formatter{pattern: pattern, time: timeLayout})

	return &patternHandler{logger: l, level: level, fields: logrus.Fields{}}
}

func (h *patternHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *patternHandler) Handle(_ context.Context, r slog.Record) error {
	fields := make(logrus.Fields, len(h.fields)+r.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		h.addAttr(fields, h.group, a)
		return true
	})

	entry := h.logger.WithFields(fields)
	if !r.Time.IsZero() {
		entry = entry.WithTime(r.Time)
	}
	entry.Log(logrusLevel(r.Level), r.Message)
	return nil
}

func (h *patternHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		h.addAttr(c.fields, h.group, a)
	}
	return c
}

func (h *patternHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.group = qualify(h.group, name)
	return c
}

func (h *patternHandler) clone() *patternHandler {
	fields := make(logrus.Fields, len(h.fields))
	for k, v := range h.fields {
		fields[k] = v
	}
	return &patternHandler{logger: h.logger, level: h.level, fields: fields, group: h.group}
}

func (h *patternHandler) addAttr(fields logrus.Fields, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		p := qualify(prefix, a.Key)
		for _, ga := range a.Value.Group() {
			h.addAttr(fields, p, ga)
		}
		return
	}
	fields[qualify(prefix, a.Key)] = a.Value.Any()
}

func qualify(prefix, key string) string {
	if prefix == "" {
		return key
	}
	if key == "" {
		return prefix
	}
	return prefix + "." + key
}

func logrusLevel(l slog.Level) logrus.Level {
	switch {
	case l >= slog.LevelError:
		return logrus.ErrorLevel
	case l >= slog.LevelWarn:
		return logrus.WarnLevel
	case l >= slog.LevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}
