package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Token validation failures.
var (
	ErrTokenMalformed = errors.New("malformed download token")
	ErrTokenSignature = errors.New("invalid download token signature")
	ErrTokenExpired   = errors.New("download token expired")
)

// DownloadGrant is the payload bound into a signed download token.
type DownloadGrant struct {
	OwnerID   string
	Key       string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates expiring HMAC download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a token granting access to key on behalf of ownerID.
func (s *SignedURLSigner) Generate(ownerID, key string) (string, time.Time, error) {
	if ownerID == "" || key == "" {
		return "", time.Time{}, fmt.Errorf("owner and key required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).Truncate(time.Second)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedKey := base64.RawURLEncoding.EncodeToString([]byte(key))
	token := strings.Join([]string{ownerID, ts, encodedKey, s.sign(ownerID, ts, encodedKey)}, ".")
	return token, expiresAt, nil
}

// Parse validates a token and returns the embedded grant.
func (s *SignedURLSigner) Parse(token string) (DownloadGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return DownloadGrant{}, ErrTokenMalformed
	}
	ownerID, ts, encodedKey, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(ownerID, ts, encodedKey)), []byte(signature)) {
		return DownloadGrant{}, ErrTokenSignature
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return DownloadGrant{}, ErrTokenMalformed
	}
	rawKey, err := base64.RawURLEncoding.DecodeString(encodedKey)
	if err != nil {
		return DownloadGrant{}, ErrTokenMalformed
	}
	grant := DownloadGrant{OwnerID: ownerID, Key: string(rawKey), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(grant.ExpiresAt) {
		return DownloadGrant{}, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) sign(ownerID, ts, encodedKey string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ownerID + "|" + ts + "|" + encodedKey))
	return hex.EncodeToString(mac.Sum(nil))
}
