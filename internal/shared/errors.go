package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrConfiguration = fmt.Errorf("missing client configuration")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Authentication errors
	ErrMissingVerifier      = fmt.Errorf("no pending PKCE verifier")
	ErrExchange             = fmt.Errorf("authorization code exchange failed")
	ErrNotAuthenticated     = fmt.Errorf("not authenticated")
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrRefresh              = fmt.Errorf("token refresh failed")
	ErrNoRefreshToken       = fmt.Errorf("no refresh token available")
	ErrTimeout              = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrNoContent          = fmt.Errorf("response has no content")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTrackNotFound      = fmt.Errorf("track not found")
	ErrDeviceNotFound     = fmt.Errorf("playback device not found")

	// Playback errors
	ErrBusy            = fmt.Errorf("a play command is already in flight")
	ErrNotSeekable     = fmt.Errorf("current track is not seekable")
	ErrDeviceNotReady  = fmt.Errorf("playback device not ready")
	ErrPremiumRequired = fmt.Errorf("spotify premium required")
	ErrTransferFailed  = fmt.Errorf("playback transfer failed")
	ErrCommandFailed   = fmt.Errorf("playback command failed")
	ErrClosed          = fmt.Errorf("player closed")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
