package discord

import "fmt"

// maxErrorBodyLen bounds how much of a provider response body is kept on
// an error, so raw payloads never flood logs or API responses.
const maxErrorBodyLen = 400

// TokenExchangeError means Discord rejected the authorization-code
// exchange. It carries the HTTP status and a truncated response body.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("discord: token exchange failed with status %d: %s", e.Status, e.Body)
}

// TransportError is any non-2xx response from the Discord API outside the
// cases that carry business meaning (404 on a member lookup).
type TransportError struct {
	Status    int
	Body      string
	Operation string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("discord: %s failed with status %d: %s", e.Operation, e.Status, e.Body)
}

func truncateBody(b []byte) string {
	if len(b) > maxErrorBodyLen {
		return string(b[:maxErrorBodyLen])
	}
	return string(b)
}
