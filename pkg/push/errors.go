package push

import "errors"

// Push errors. They appear in Result.Err; HandlePush never returns them
// directly.
var (
	// ErrEmptyPayload is reported for an absent or empty payload.
	ErrEmptyPayload = errors.New("push: empty payload")

	// ErrMissingBody is returned when the relay envelope has no body.
	ErrMissingBody = errors.New("push: envelope has no body")

	// ErrMalformedPayload is returned when the envelope body is not base64.
	ErrMalformedPayload = errors.New("push: malformed payload")

	// ErrMalformedEvent is reported when decoded event text is not
	// "<camera>_<seconds>".
	ErrMalformedEvent = errors.New("push: malformed event")

	// ErrNoCamera is reported when no camera is paired to decode with.
	ErrNoCamera = errors.New("push: no paired camera")

	// ErrMissingDependency is returned by NewPipeline for a nil required
	// collaborator.
	ErrMissingDependency = errors.New("push: missing dependency")
)
