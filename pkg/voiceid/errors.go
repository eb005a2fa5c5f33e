package voiceid

import "errors"

// Error taxonomy shared across the enrollment and identification paths.
// Implementations wrap these sentinels with fmt.Errorf("…: %w", …) so the
// transport boundary can translate them with errors.Is without inspecting
// message text.
var (
	// ErrValidation marks bad caller input (empty identity, slot out of
	// range). Rejected before any side effect.
	ErrValidation = errors.New("voiceid: invalid input")

	// ErrTranscode marks a failed audio conversion. Local to one clip and
	// retryable; existing slot state is left untouched.
	ErrTranscode = errors.New("voiceid: audio transcode failed")

	// ErrExtraction marks a failed embedding extraction for one clip. The
	// clip is skipped; the batch is not aborted.
	ErrExtraction = errors.New("voiceid: embedding extraction failed")

	// ErrInsufficientData is returned when zero clips could be extracted at
	// commit time. No commit occurs and all slots are preserved.
	ErrInsufficientData = errors.New("voiceid: no usable clips for enrollment")

	// ErrNotFound marks a lookup or delete of an unknown identity.
	ErrNotFound = errors.New("voiceid: identity not found")

	// ErrStorage marks a registry read or write failure. The request fails
	// but the service keeps serving subsequent requests.
	ErrStorage = errors.New("voiceid: registry storage failure")
)
