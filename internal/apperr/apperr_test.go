package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: CodeInternal},
		{name: "app error", err: Forbidden("no"), want: CodeForbidden},
		{name: "wrapped app error", err: fmt.Errorf("ctx: %w", NotAMember("x")), want: CodeNotAMember},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CodeOf(tc.err))
		})
	}
}

func TestIsMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("join: %w", ErrInvalidOrExpiredInvite)
	assert.True(t, errors.Is(err, ErrInvalidOrExpiredInvite))
	assert.False(t, errors.Is(err, ErrAlreadyMember))
	assert.True(t, errors.Is(Forbidden("other text"), &AppError{Code: CodeForbidden}))
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "Cannot change owner role", MessageOf(ErrCannotChangeOwnerRole))
	assert.Equal(t, "internal server error", MessageOf(errors.New("db down")))
	assert.Equal(t, "internal server error: db down", Internal(errors.New("db down")).Error())
}
