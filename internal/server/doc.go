// Package server provides HTTP routing, middleware, and the handlers behind `spotui serve` and `spotui auth login`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support. [BasicRouter] uses [http.ServeMux] method
// patterns internally.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [Logging] tags every request with an id, [RateLimit] keeps a token bucket per client IP and [Recover] turns
// panics into 500s.
//
// # OAuth Handler
//
// [OAuthHandler] serves /login, /callback and /logout. Login redirects to the authorize URL produced by the token
// manager; the callback exchanges the code, fetches the profile and reports the outcome on a channel. The CLI runs
// it in single-use mode on a short-lived server so a replayed callback is refused.
//
// # Player
//
// [Server] mounts the player page at "/", the bridge WebSocket at /device/ws and a small JSON API over the playback
// coordinator:
//
//	GET  /api/player            current state
//	POST /api/player/activate   transfer playback to the bridge device
//	POST /api/player/play       {"uri": "..."}
//	POST /api/player/toggle
//	POST /api/player/seek       {"position_ms": 0}
//	POST /api/player/volume     {"volume": 0.5}
//	POST /api/player/next
//	POST /api/player/previous
//	PUT  /api/player/current    {"uri": "..."}, debounced
//	GET  /api/search?q=&limit=
//	GET  /api/me
//
// Errors are JSON objects; [StatusFor] documents the status mapping.
package server
