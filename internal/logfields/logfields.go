package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeySource      = "source"
	KeyDestination = "destination"
	KeyProgram     = "program"
	KeyEvent       = "event"
	KeyModule      = "module"
	KeyRoute       = "route"
	KeyTemplate    = "template"
	KeyDurationMS  = "duration_ms"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Source(p string) slog.Attr       { return slog.String(KeySource, p) }
func Destination(p string) slog.Attr  { return slog.String(KeyDestination, p) }
func Program(name string) slog.Attr   { return slog.String(KeyProgram, name) }
func Event(name string) slog.Attr     { return slog.String(KeyEvent, name) }
func Module(name string) slog.Attr    { return slog.String(KeyModule, name) }
func Route(name string) slog.Attr     { return slog.String(KeyRoute, name) }
func Template(name string) slog.Attr  { return slog.String(KeyTemplate, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
