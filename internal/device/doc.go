// Package device implements [playback.Device] for the two places spotui can play audio.
//
// # Web Playback SDK bridge
//
// [Bridge] is the device hosted by the player page served at "/". The page loads the Spotify Web Playback SDK and
// connects back over a WebSocket; the bridge turns SDK callbacks into playback events and sends commands with a
// correlation id, waiting for the page to acknowledge each one. Token requests from the SDK are answered from a
// [TokenSource]. Only one page may be attached at a time.
//
// Frames are JSON objects routed on their "type" field:
//
//	page -> server: ready, not_ready, state, error, token_request, result
//	server -> page: init, token, command
//
// # Spotify Connect
//
// [Connect] drives an existing Connect device (desktop app, speaker, phone) purely through the Web API. It resolves
// the device by name, then polls the player endpoint on a fixed interval and reports what changed.
package device
