package jira

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStatusError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		status  int
		body    string
		kind    Kind
		message string
	}{
		{401, `{}`, KindAuth, "Authentication failed. Please check your Jira credentials."},
		{403, `{}`, KindForbidden, "Access denied. You do not have permission to access this resource."},
		{404, `{}`, KindNotFound, "Resource not found in Jira."},
		{429, `{}`, KindRateLimited, "Rate limit exceeded. Please try again later."},
		{500, `{}`, KindServer, "Jira server error. Please try again later."},
		{503, `{}`, KindServer, "Jira server error. Please try again later."},
		{400, `{"errorMessages":["The value 'XYZ' does not exist for the field 'project'."]}`, KindUnknown, "The value 'XYZ' does not exist for the field 'project'."},
		{400, `{"errorMessages":[],"message":"bad jql"}`, KindUnknown, "bad jql"},
		{422, `not json`, KindUnknown, "Unknown error occurred"},
		{409, `{}`, KindUnknown, "Unknown error occurred"},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d %s", tc.status, tc.kind), func(t *testing.T) {
			t.Parallel()

			err := newStatusError("searchIssues", tc.status, []byte(tc.body))
			assert.Equal(t, tc.kind, err.Kind)
			assert.Equal(t, tc.status, err.StatusCode)
			assert.Equal(t, tc.message, err.Error())
			assert.Equal(t, "searchIssues", err.Op)

			var se *statusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tc.body, string(se.Body))
		})
	}
}

func TestNewTransportError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		err     error
		kind    Kind
		status  int
		message string
	}{
		{
			name:    "deadline",
			err:     fmt.Errorf("do request: %w", context.DeadlineExceeded),
			kind:    KindTimeout,
			status:  http.StatusGatewayTimeout,
			message: "Request timeout. Jira is taking too long to respond.",
		},
		{
			name:    "dns",
			err:     &net.DNSError{Err: "no such host", Name: "jira.invalid"},
			kind:    KindUnreachable,
			status:  http.StatusBadGateway,
			message: "Cannot connect to Jira. Please check the URL.",
		},
		{
			name:    "refused",
			err:     &net.OpError{Op: "read", Err: syscall.ECONNREFUSED},
			kind:    KindUnreachable,
			status:  http.StatusBadGateway,
			message: "Cannot connect to Jira. Please check the URL.",
		},
		{
			name:    "other",
			err:     errors.New("tls: bad certificate"),
			kind:    KindUnknown,
			status:  http.StatusInternalServerError,
			message: "Error communicating with Jira",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := newTransportError("getFields", tc.err)
			assert.Equal(t, tc.kind, err.Kind)
			assert.Equal(t, tc.status, err.StatusCode)
			assert.Equal(t, tc.message, err.Message)
			assert.ErrorIs(t, err, tc.err)
			assert.NotContains(t, err.Error(), tc.err.Error())
		})
	}
}

func TestErrorDetails(t *testing.T) {
	t.Parallel()

	err := newStatusError("getProjects", http.StatusForbidden, []byte(`{"secret":"x"}`))
	assert.Equal(t, map[string]any{"operation": "getProjects", "status": 403}, err.Details())
}
