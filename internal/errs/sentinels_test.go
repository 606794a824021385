package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTaxonomy_SubtypesMatchBase(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, ErrAuthentication, ErrClient)
	require.ErrorIs(t, ErrCommunication, ErrClient)
	require.NotErrorIs(t, ErrAuthentication, ErrCommunication)
	require.NotErrorIs(t, ErrCommunication, ErrAuthentication)
}

func TestAuthentication_KeepsMessageAndCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("HTTP 401 Unauthorized")
	err := Authentication(cause.Error(), cause)

	require.Equal(t, "HTTP 401 Unauthorized", err.Error())
	require.ErrorIs(t, err, ErrAuthentication)
	require.ErrorIs(t, err, ErrClient)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrCommunication)
}

func TestCommunication_NilCause(t *testing.T) {
	t.Parallel()

	err := Communication("Error fetching trips: boom", nil)
	require.ErrorIs(t, err, ErrCommunication)
	require.ErrorIs(t, err, ErrClient)
	require.Equal(t, "Error fetching trips: boom", err.Error())
}
