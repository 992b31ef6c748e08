package auth

import (
	"strconv"
	"time"
)

// Keys in the flat key-value store. Expiry is epoch milliseconds.
const (
	KeyAccessToken  = "spotify_access_token"
	KeyRefreshToken = "spotify_refresh_token"
	KeyTokenExpiry  = "spotify_token_expiry"
	KeyCodeVerifier = "spotify_code_verifier"
)

// minTokenLength rejects truncated or placeholder access tokens.
const minTokenLength = 50

// Credential is the token triple issued by the authorization server.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Valid reports whether the credential can be used at now.
func (c Credential) Valid(now time.Time) bool {
	return len(c.AccessToken) > minTokenLength && now.Before(c.ExpiresAt)
}

// IsZero reports whether no part of a credential is held.
func (c Credential) IsZero() bool {
	return c.AccessToken == "" && c.RefreshToken == "" && c.ExpiresAt.IsZero()
}

func (c Credential) entries() map[string]string {
	return map[string]string{
		KeyAccessToken:  c.AccessToken,
		KeyRefreshToken: c.RefreshToken,
		KeyTokenExpiry:  strconv.FormatInt(c.ExpiresAt.UnixMilli(), 10),
	}
}

// loadCredential reads the persisted triple. A missing or malformed expiry yields a zero ExpiresAt, which is never valid.
func loadCredential(s Storage) (Credential, error) {
	var cred Credential

	access, _, err := s.Get(KeyAccessToken)
	if err != nil {
		return cred, err
	}
	refresh, _, err := s.Get(KeyRefreshToken)
	if err != nil {
		return cred, err
	}
	expiry, ok, err := s.Get(KeyTokenExpiry)
	if err != nil {
		return cred, err
	}

	cred.AccessToken = access
	cred.RefreshToken = refresh
	if ok {
		if ms, err := strconv.ParseInt(expiry, 10, 64); err == nil {
			cred.ExpiresAt = time.UnixMilli(ms)
		}
	}
	return cred, nil
}
