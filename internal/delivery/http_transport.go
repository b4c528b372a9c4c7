package delivery

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ProviderError is a non-2xx response from an HTTP messaging API.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// readBody reads at most 64KB of a provider response.
func readBody(resp *http.Response) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, 64<<10))
}

func trimBase(u string) string { return strings.TrimRight(u, "/") }
