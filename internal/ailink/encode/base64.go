package encode

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidDataURL is returned when a value is not a base64 data URL.
var ErrInvalidDataURL = errors.New("invalid data url")

func DecodeBase64String(value string) ([]byte, error) {
	value = strings.TrimSpace(value)
	data, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		// Some clients strip the padding.
		if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(value, "=")); rawErr == nil {
			return raw, nil
		}
		return nil, err
	}
	return data, nil
}

func EncodeBase64String(value []byte) string {
	return base64.StdEncoding.EncodeToString(value)
}

// DataURL renders data as a data:<mediaType>;base64,<payload> URL.
func DataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + EncodeBase64String(data)
}

// ParseDataURL splits a base64 data URL into its media type and payload.
// The media type may be empty when the URL omits it.
func ParseDataURL(value string) (string, []byte, error) {
	value = strings.TrimSpace(value)
	rest, ok := strings.CutPrefix(value, "data:")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}

	params := strings.Split(meta, ";")
	mediaType := strings.ToLower(strings.TrimSpace(params[0]))
	isBase64 := false
	for _, p := range params[1:] {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			isBase64 = true
		}
	}
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: payload is not base64", ErrInvalidDataURL)
	}
	if strings.TrimSpace(payload) == "" {
		return "", nil, fmt.Errorf("%w: empty payload", ErrInvalidDataURL)
	}

	data, err := DecodeBase64String(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	return mediaType, data, nil
}
