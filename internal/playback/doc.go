// Package playback reconciles user playback intents with an externally owned device.
//
// A [Coordinator] sits between intent producers (CLI, HTTP API, TUI) and a [Device] whose state changes arrive
// asynchronously on an event channel. It keeps two layers of state:
//
//   - ObservedState ([PlayerState]) : what the device last reported, the only truth about what is playing
//   - DesiredState : what was last asked for, plus an intent parked while playback is being transferred
//
// # Lifecycle
//
//	Uninitialized --Ready--> Inactive --transfer ok--> Active --NotReady--> Inactive
//
// Device error events never move the node. An account_error puts the coordinator in degraded mode where every
// command fails with [shared.ErrPremiumRequired].
//
// # Dispatch
//
// Commands are only forwarded while Active. While Inactive the coordinator transfers playback first, waits a
// settle delay and then runs the latest intent received in the meantime. A play intent is rejected with
// [shared.ErrBusy] while another is outstanding, and becomes a toggle when it names the track already loaded.
//
// Device state events are always recorded. A track change is announced, and adopted as the desired track, only
// when the URI is neither the last one the coordinator confirmed nor the one currently in flight, so a device
// echoing our own command never re-triggers it.
//
// [Coordinator.SetCurrentTrack] is the debounced auto-dispatch path for list selection.
package playback
