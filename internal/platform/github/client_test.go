package github

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"github.com/google/go-github/v41/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edutools/classrepo/internal/platform"
)

func ghError(status int, msg string) error {
	return &github.ErrorResponse{
		Response: &http.Response{StatusCode: status},
		Message:  msg,
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want any
	}{
		{
			name: "404 becomes not found",
			err:  ghError(http.StatusNotFound, "Not Found"),
			want: &platform.NotFoundError{},
		},
		{
			name: "401 becomes bad credentials",
			err:  ghError(http.StatusUnauthorized, "Bad credentials"),
			want: &platform.BadCredentialsError{},
		},
		{
			name: "422 becomes api error",
			err:  ghError(http.StatusUnprocessableEntity, "Validation Failed"),
			want: &platform.APIError{},
		},
		{
			name: "500 becomes api error",
			err:  ghError(http.StatusInternalServerError, "boom"),
			want: &platform.APIError{},
		},
		{
			name: "dns failure becomes service not found",
			err:  &net.DNSError{Err: "no such host", Name: "api.github.invalid"},
			want: &platform.ServiceNotFoundError{},
		},
		{
			name: "anything else is unexpected",
			err:  errors.New("connection reset"),
			want: &platform.UnexpectedError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err)
			require.Error(t, got)
			assert.ErrorAs(t, got, tt.want)
		})
	}
}

func TestTranslateNil(t *testing.T) {
	assert.NoError(t, translate(nil))
}

func TestTranslatePreservesStatus(t *testing.T) {
	got := translate(ghError(http.StatusBadGateway, "upstream"))
	var apiErr platform.APIError
	require.ErrorAs(t, got, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Contains(t, apiErr.Error(), "upstream")
}

func TestErrStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, errStatus(ghError(http.StatusNotFound, "nope")))
	assert.Equal(t, 0, errStatus(errors.New("plain")))
	assert.Equal(t, 0, errStatus(nil))
}

func TestNewClientRejectsEmptyToken(t *testing.T) {
	_, err := NewClient(context.Background(), "https://api.github.com", "", "course-org", "teacher")
	var badCreds platform.BadCredentialsError
	assert.ErrorAs(t, err, &badCreds)
}

func TestVerifySettingsRejectsEmptyToken(t *testing.T) {
	err := VerifySettings(context.Background(), "https://api.github.com", "teacher", "course-org", "", "")
	var badCreds platform.BadCredentialsError
	assert.ErrorAs(t, err, &badCreds)
}

func TestNewGitHubClientEndpoints(t *testing.T) {
	ctx := context.Background()

	public, err := newGitHubClient(ctx, "https://api.github.com", "sometoken")
	require.NoError(t, err)
	assert.Equal(t, "https://api.github.com/", public.BaseURL.String())

	enterprise, err := newGitHubClient(ctx, "https://github.example.com/api/v3", "sometoken")
	require.NoError(t, err)
	assert.Equal(t, "https://github.example.com/api/v3/", enterprise.BaseURL.String())
}
