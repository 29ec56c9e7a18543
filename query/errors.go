package query

import (
	"fmt"

	goerrors "github.com/goliatone/go-errors"
)

// TextCodeCompile tags errors raised for malformed filter objects.
const TextCodeCompile = "FILTER_COMPILE"

func compileError(path, format string, args ...any) error {
	if path == "" {
		path = "$"
	}
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryBadInput).
		WithTextCode(TextCodeCompile).
		WithMetadata(map[string]any{"path": path})
}

// IsCompileError reports whether err was raised while parsing a filter.
func IsCompileError(err error) bool {
	var e *goerrors.Error
	if !goerrors.As(err, &e) {
		return false
	}
	return e.TextCode == TextCodeCompile
}
