package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/bonusdrive/internal/errs"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	t.Parallel()
	ti := NewTokenIssuer([]byte("secret"), time.Hour)

	tok, exp, err := ti.Issue("admin")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	sub, err := ti.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "admin", sub)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	t.Parallel()
	ti := NewTokenIssuer([]byte("secret"), time.Minute)

	other := NewTokenIssuer([]byte("other"), time.Minute)
	foreign, _, err := other.Issue("admin")
	require.NoError(t, err)
	_, err = ti.Verify(foreign)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	expired := NewTokenIssuer([]byte("secret"), time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, _, err := expired.Issue("admin")
	require.NoError(t, err)
	_, err = ti.Verify(old)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	empty, _, err := ti.Issue("")
	require.NoError(t, err)
	_, err = ti.Verify(empty)
	require.ErrorIs(t, err, errs.ErrUnauthorized)

	_, err = ti.Verify("garbage")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
