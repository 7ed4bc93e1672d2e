package domain

import "time"

// TokenIssuer issues API tokens for a subject (an operator or a calling service).
type TokenIssuer interface {
	Issue(subject string, roles []string, ttl time.Duration) (string, error)
}

// TokenVerifier checks a token and returns its subject.
type TokenVerifier interface {
	Verify(token string) (subject string, err error)
}
