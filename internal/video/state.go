package video

import "fmt"

// State is the ingestion state of a video asset as derived from the platform.
type State string

const (
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateReady      State = "ready"
	StateErrored    State = "errored"
)

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s == StateReady || s == StateErrored
}

// Event drives a state transition.
type Event string

const (
	EventUploadCompleted Event = "upload_completed"
	EventAssetReady      Event = "asset_ready"
	EventTransportFailed Event = "transport_failed"
	EventPollExhausted   Event = "poll_exhausted"
)

// InvalidTransitionError is returned for an event the current state does not accept.
type InvalidTransitionError struct {
	From  State
	Event Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("video: %s does not accept %s", e.From, e.Event)
}

// Transition applies event to from.
func Transition(from State, event Event) (State, error) {
	switch from {
	case StateUploading:
		switch event {
		case EventUploadCompleted:
			return StateProcessing, nil
		case EventTransportFailed:
			return StateErrored, nil
		}
	case StateProcessing:
		switch event {
		case EventAssetReady:
			return StateReady, nil
		case EventPollExhausted, EventTransportFailed:
			return StateErrored, nil
		}
	}
	return from, &InvalidTransitionError{From: from, Event: event}
}

// Upload statuses reported by the platform.
const (
	uploadStatusErrored   = "errored"
	uploadStatusCancelled = "cancelled"
	uploadStatusTimedOut  = "timed_out"
)

// Asset statuses and progress states reported by the platform.
const (
	assetStatusReady      = "ready"
	assetStatusErrored    = "errored"
	progressStateComplete = "completed"
)

// DeriveState replays what the platform reports for an upload and its asset
// through the state machine. asset is nil while the platform has not yet
// created one.
func DeriveState(upload Upload, asset *PlatformAsset) State {
	state := StateUploading
	switch upload.Status {
	case uploadStatusErrored, uploadStatusCancelled, uploadStatusTimedOut:
		state, _ = Transition(state, EventTransportFailed)
		return state
	}
	if asset == nil {
		return state
	}
	state, _ = Transition(state, EventUploadCompleted)
	switch {
	case asset.Status == assetStatusErrored:
		state, _ = Transition(state, EventTransportFailed)
	case (asset.Status == assetStatusReady || asset.ProgressState == progressStateComplete) && len(asset.PlaybackIDs) > 0:
		state, _ = Transition(state, EventAssetReady)
	}
	return state
}
