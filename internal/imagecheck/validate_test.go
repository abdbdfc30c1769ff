package imagecheck

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func pngHeader(width, height uint32) []byte {
	buf := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	buf = append(buf, []byte("IHDR")...)
	buf = binary.BigEndian.AppendUint32(buf, width)
	buf = binary.BigEndian.AppendUint32(buf, height)
	return append(buf, 0x08, 0x06, 0x00, 0x00, 0x00)
}

func TestValidatorRejectsOversizedImage(t *testing.T) {
	v := NewValidator(2000)

	info, err := v.Validate(pngHeader(4000, 3000))
	require.Error(t, err)

	var dimErr *DimensionError
	require.True(t, errors.As(err, &dimErr))
	require.Equal(t, 2000, dimErr.Max)
	require.Equal(t, 4000, info.Width)
	require.Contains(t, err.Error(), "4000x3000")
}

func TestValidatorAcceptsWithinLimit(t *testing.T) {
	v := NewValidator(2000)

	info, err := v.Validate(jpegWithFrame(800, 600))
	require.NoError(t, err)
	require.Equal(t, FormatJPEG, info.Format)

	_, err = v.Validate(pngHeader(2000, 2000))
	require.NoError(t, err)
}

func TestValidatorFailsOpenOnUnknown(t *testing.T) {
	v := NewValidator(10)

	info, err := v.Validate([]byte("definitely not an image"))
	require.NoError(t, err)
	require.Equal(t, FormatUnknown, info.Format)
}

func TestNewValidatorDefaultsLimit(t *testing.T) {
	require.Equal(t, DefaultMaxDimension, NewValidator(0).MaxDimension)

	var nilValidator *Validator
	_, err := nilValidator.Validate(pngHeader(2001, 10))
	require.Error(t, err)
}
