package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
)

// ErrMalformedSession is returned when a stored session artifact cannot be decoded.
var ErrMalformedSession = errors.New("malformed session data")

// encodeValue serializes v as URL-encoded JSON, the format of every session artifact.
func encodeValue(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	return url.PathEscape(string(raw)), nil
}

func decodeValue(encoded string, v any) error {
	raw, err := url.PathUnescape(encoded)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSession, err)
	}
	return nil
}
