package storage

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("app-1", "app-1/resume/cv.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	grant, err := signer.Parse(token)
	require.NoError(t, err)
	require.Equal(t, "app-1", grant.OwnerID)
	require.Equal(t, "app-1/resume/cv.pdf", grant.Key)
	require.WithinDuration(t, expiresAt, grant.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)
	base := time.Now()
	signer.now = func() time.Time { return base }
	token, _, err := signer.Generate("app-1", "app-1/resume/cv.pdf")
	require.NoError(t, err)

	signer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = signer.Parse(token)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("app-1", "app-1/resume/cv.pdf")
	require.NoError(t, err)

	tampered := strings.Replace(token, "app-1.", "app-2.", 1)
	_, err = signer.Parse(tampered)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, err = NewSignedURLSigner("other", time.Hour).Parse(token)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, err = signer.Parse("not-a-token")
	require.ErrorIs(t, err, ErrTokenMalformed)
}
