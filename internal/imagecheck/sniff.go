// Package imagecheck inspects raw image bytes before they are sent to a paid
// extraction provider.
//
// All sniffers are total: truncated or malformed input yields ok=false and
// never panics.
package imagecheck

import "encoding/binary"

// Format names a detected container format.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatGIF     Format = "gif"
	FormatWebP    Format = "webp"
)

// Info describes the dimensions of a recognized image.
type Info struct {
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Format Format `json:"format"`
}

// MediaType returns the IANA media type for the format.
func (f Format) MediaType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	case FormatWebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Sniff detects the image format and dimensions from leading bytes.
func Sniff(data []byte) (Info, bool) {
	switch {
	case hasPrefix(data, 0xFF, 0xD8, 0xFF):
		return sniffJPEG(data)
	case hasPrefix(data, 0x89, 'P', 'N', 'G'):
		return sniffPNG(data)
	case hasPrefix(data, 'G', 'I', 'F'):
		return sniffGIF(data)
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return sniffWebP(data)
	default:
		return Info{Format: FormatUnknown}, false
	}
}

func sniffJPEG(data []byte) (Info, bool) {
	i := 2
	for i+1 < len(data) {
		if data[i] != 0xFF {
			return Info{Format: FormatUnknown}, false
		}
		// fill bytes
		for i+1 < len(data) && data[i+1] == 0xFF {
			i++
		}
		if i+1 >= len(data) {
			break
		}
		marker := data[i+1]

		if marker >= 0xC0 && marker <= 0xC3 {
			if i+8 >= len(data) {
				return Info{Format: FormatUnknown}, false
			}
			height := int(binary.BigEndian.Uint16(data[i+5 : i+7]))
			width := int(binary.BigEndian.Uint16(data[i+7 : i+9]))
			return Info{Width: width, Height: height, Format: FormatJPEG}, true
		}

		// standalone markers carry no length field
		if marker == 0x01 || marker == 0xD8 || (marker >= 0xD0 && marker <= 0xD7) {
			i += 2
			continue
		}
		if marker == 0xD9 || marker == 0xDA {
			break
		}

		if i+3 >= len(data) {
			break
		}
		length := int(binary.BigEndian.Uint16(data[i+2 : i+4]))
		if length < 2 {
			break
		}
		i += 2 + length
	}
	return Info{Format: FormatUnknown}, false
}

func sniffPNG(data []byte) (Info, bool) {
	if len(data) < 24 {
		return Info{Format: FormatUnknown}, false
	}
	width := binary.BigEndian.Uint32(data[16:20])
	height := binary.BigEndian.Uint32(data[20:24])
	return Info{Width: int(width), Height: int(height), Format: FormatPNG}, true
}

func sniffGIF(data []byte) (Info, bool) {
	if len(data) < 10 {
		return Info{Format: FormatUnknown}, false
	}
	width := binary.LittleEndian.Uint16(data[6:8])
	height := binary.LittleEndian.Uint16(data[8:10])
	return Info{Width: int(width), Height: int(height), Format: FormatGIF}, true
}

func sniffWebP(data []byte) (Info, bool) {
	if len(data) < 16 {
		return Info{Format: FormatUnknown}, false
	}

	switch string(data[12:16]) {
	case "VP8 ":
		if len(data) < 30 {
			break
		}
		width := binary.LittleEndian.Uint16(data[26:28]) & 0x3FFF
		height := binary.LittleEndian.Uint16(data[28:30]) & 0x3FFF
		return Info{Width: int(width), Height: int(height), Format: FormatWebP}, true
	case "VP8L":
		if len(data) < 25 {
			break
		}
		bits := binary.LittleEndian.Uint32(data[21:25])
		width := int(bits&0x3FFF) + 1
		height := int((bits>>14)&0x3FFF) + 1
		return Info{Width: width, Height: height, Format: FormatWebP}, true
	case "VP8X":
		if len(data) < 30 {
			break
		}
		width := int(uint24(data[24:27])) + 1
		height := int(uint24(data[27:30])) + 1
		return Info{Width: width, Height: height, Format: FormatWebP}, true
	}
	return Info{Format: FormatUnknown}, false
}

func uint24(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
}

func hasPrefix(data []byte, prefix ...byte) bool {
	if len(data) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if data[i] != b {
			return false
		}
	}
	return true
}
