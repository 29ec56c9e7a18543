package cache

import (
	"log/slog"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeUnavailable tags failures of the cache store, the search index or
// any other backing service reached over the network.
const TextCodeUnavailable = "BACKING_SERVICE_UNAVAILABLE"

// Unavailable wraps err as a backing service failure. It returns nil when
// err is nil.
func Unavailable(err error, op string, meta map[string]any) error {
	if err == nil {
		return nil
	}
	e := goerrors.Wrap(err, goerrors.CategoryExternal, op).
		WithTextCode(TextCodeUnavailable).
		WithSeverity(goerrors.SeverityWarning)
	if len(meta) > 0 {
		e = e.WithMetadata(meta)
	}
	return e
}

// IsUnavailable reports whether err was raised by Unavailable.
func IsUnavailable(err error) bool {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		return false
	}
	return e.TextCode == TextCodeUnavailable
}

// LogError logs err at the level implied by its severity. Plain errors are
// logged at warn level with the error text.
func LogError(logger *slog.Logger, msg string, err error, args ...any) {
	if err == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}

	var e *goerrors.Error
	if goerrors.As(err, &e) {
		goerrors.LogBySeverity(logger.With(append(args, slog.String("op", msg))...), e)
		return
	}
	logger.Warn(msg, append(args, slog.String("error", err.Error()))...)
}
