// Package models defines the plain data types shared by the API client, the player and the front ends.
//
//   - [Track] : a playable track with its Spotify URI
//   - [Profile] : the signed-in account
//   - [Playlist] : playlist metadata from the user's library
//   - [Device] : a Spotify Connect device
//   - [Playback] : a snapshot of GET /me/player
//   - [TrackList] : a titled list of tracks, the unit the formatter exports
//
// None of these carry behavior beyond small derived accessors.
package models
