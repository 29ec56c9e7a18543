package searchindex

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeConflictExhausted tags scripted updates that kept conflicting
// after every retry.
const TextCodeConflictExhausted = "CONFLICT_EXHAUSTED"

func conflictExhausted(index string, attempts int, query map[string]any, script string, last error) error {
	msg := fmt.Sprintf("scripted update on %s still conflicting after %d attempts", index, attempts)
	var err *goerrors.Error
	if last != nil {
		err = goerrors.Wrap(last, goerrors.CategoryConflict, msg)
	} else {
		err = goerrors.New(msg, goerrors.CategoryConflict)
	}
	return err.
		WithTextCode(TextCodeConflictExhausted).
		WithMetadata(map[string]any{
			"index":    index,
			"attempts": attempts,
			"query":    query,
			"script":   script,
		})
}

// IsConflictExhausted reports whether err marks an abandoned scripted update.
func IsConflictExhausted(err error) bool {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		return false
	}
	return e.TextCode == TextCodeConflictExhausted
}
