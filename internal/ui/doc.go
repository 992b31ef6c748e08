// Package ui implements the terminal player using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [NowPlayingView] : the current track, a progress bar and playback keys
//  2. [SearchView] : a query box over a list of matching tracks
//
// The [Model] never owns playback state. It renders snapshots from the coordinator ([Player]) and re-reads them
// whenever a notification arrives; keys become intents. Choosing a search result calls SetCurrentTrack, so
// skimming through results with enter only plays the last one picked.
//
// Messages from commands arrive through the Msg union type. Contextual help is rendered with
// charmbracelet/bubbles/help.
package ui
