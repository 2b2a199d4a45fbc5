package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// StatusError reports a response that arrived with a non-success status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// shouldFallback reports whether err happened before the server answered, i.e. a plain-HTTP
// retry could still succeed.
func shouldFallback(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *StatusError
	return !errors.As(err, &statusErr)
}

func httpFallbackURL(raw string) (string, bool) {
	if len(raw) < len("https://") || !strings.EqualFold(raw[:len("https://")], "https://") {
		return "", false
	}
	return "http://" + raw[len("https://"):], true
}
