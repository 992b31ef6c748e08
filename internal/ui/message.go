package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/spotui/internal/models"
	"github.com/desertthunder/spotui/internal/playback"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgNotification MsgKind = iota
	MsgNotificationsClosed
	MsgSearchResults
	MsgCommandDone
)

type searchResults struct {
	query  string
	tracks []models.Track
	err    error
}

type commandResult struct {
	name string
	err  error
}

// notificationMsg is the constructor for [MsgNotification]
func notificationMsg(n playback.Notification) Msg {
	return Msg{kind: MsgNotification, data: n}
}

// notificationsClosedMsg is the constructor for [MsgNotificationsClosed]
func notificationsClosedMsg() Msg {
	return Msg{kind: MsgNotificationsClosed}
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(query string, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResults{query, tracks, err}}
}

// commandDoneMsg is the constructor for [MsgCommandDone]
func commandDoneMsg(name string, err error) Msg {
	return Msg{kind: MsgCommandDone, data: commandResult{name, err}}
}
