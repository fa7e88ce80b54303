package jira

import (
	"errors"
	"net/http"
	"strings"
)

// AuthFunc applies authentication to an outgoing request.
type AuthFunc func(*http.Request)

// ErrMissingCredentials is returned when email or API token is empty.
var ErrMissingCredentials = errors.New("jira email and api token are required")

// NewBasicAuth returns an AuthFunc using Basic auth with email and API token.
func NewBasicAuth(email, token string) AuthFunc {
	email, token = strings.TrimSpace(email), strings.TrimSpace(token)
	return func(r *http.Request) {
		r.SetBasicAuth(email, token)
	}
}

// ResolveAuth validates the credentials and returns a Basic AuthFunc.
func ResolveAuth(email, token string) (AuthFunc, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(token) == "" {
		return nil, ErrMissingCredentials
	}
	return NewBasicAuth(email, token), nil
}
