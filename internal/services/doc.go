// Package services is the typed Spotify Web API client.
//
// Every call goes through a [Requester], normally an [auth.TokenManager], so bearer handling, refresh and the
// 401 retry live in one place. Responses decode into the wire structs of github.com/zmb3/spotify/v2 and are
// converted to [models] types before they leave the package.
//
// # Library
//
//   - [SpotifyService.CurrentUser] : GET /me
//   - [SpotifyService.SearchTracks] : GET /search (an empty query never reaches the network)
//   - [SpotifyService.ArtistTracks] : search restricted to one artist
//   - [SpotifyService.UserPlaylists] : GET /me/playlists, following pagination
//   - [SpotifyService.TopTracks] : GET /me/top/tracks
//
// # Player
//
// The /me/player endpoints back playback transfer and track selection for the coordinator, and every command of the
// Connect device. Player errors are mapped onto sentinels:
//   - 403 with reason PREMIUM_REQUIRED (or none) : [shared.ErrPremiumRequired]
//   - 404 : [shared.ErrDeviceNotFound]
//   - anything else : [shared.ErrCommandFailed]
//
// # Raw access
//
// [APIService] performs arbitrary authorized GETs and reports non-2xx responses as data instead of errors.
package services
