package push

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// EnvelopeBodyKey is the relay data key carrying the encoded payload.
const EnvelopeBodyKey = "body"

// DecodeEnvelope extracts the opaque payload from a relay data map. The body
// is standard base64; embedded line breaks are ignored.
func DecodeEnvelope(data map[string]string) ([]byte, error) {
	body, ok := data[EnvelopeBodyKey]
	if !ok {
		return nil, ErrMissingBody
	}
	b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(body), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return b, nil
}
