package encode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBase64RoundTrip(t *testing.T) {
	original := []byte("hello")
	encoded := EncodeBase64String(original)
	decoded, err := DecodeBase64String(encoded)
	require.NoError(t, err)
	require.Equal(t, original, decoded)
}

func TestParseDataURL(t *testing.T) {
	url := DataURL("image/png", []byte{0x89, 'P', 'N', 'G'})
	require.Equal(t, "data:image/png;base64,iVBORw==", url)

	mediaType, data, err := ParseDataURL(url)
	require.NoError(t, err)
	require.Equal(t, "image/png", mediaType)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	mediaType, data, err = ParseDataURL("data:;base64,aGVsbG8")
	require.NoError(t, err)
	require.Empty(t, mediaType)
	require.Equal(t, []byte("hello"), data)
}

func TestParseDataURLRejectsMalformed(t *testing.T) {
	for _, value := range []string{
		"",
		"aGVsbG8=",
		"data:image/png;base64",
		"data:image/png,hello",
		"data:image/png;base64,",
		"data:image/png;base64,!!!not-base64!!!",
	} {
		_, _, err := ParseDataURL(value)
		require.ErrorIs(t, err, ErrInvalidDataURL, value)
	}
}
