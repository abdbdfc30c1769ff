package imagecheck

import "fmt"

// DefaultMaxDimension is the largest width or height accepted when no limit is configured.
const DefaultMaxDimension = 2000

// DimensionError reports an image whose known dimensions exceed the limit.
type DimensionError struct {
	Info Info
	Max  int
}

func (e *DimensionError) Error() string {
	if e == nil {
		return "image too large"
	}
	return fmt.Sprintf("image dimensions %dx%d exceed maximum of %dpx", e.Info.Width, e.Info.Height, e.Max)
}

// Validator applies the size policy to uploaded images.
type Validator struct {
	MaxDimension int
}

// NewValidator returns a validator with the given limit, or the default when limit <= 0.
func NewValidator(maxDimension int) *Validator {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Validator{MaxDimension: maxDimension}
}

// Validate rejects images whose known dimensions exceed the maximum.
// Unrecognized input passes and is left for the provider to reject.
func (v *Validator) Validate(data []byte) (Info, error) {
	info, ok := Sniff(data)
	if !ok {
		return Info{Format: FormatUnknown}, nil
	}

	limit := DefaultMaxDimension
	if v != nil && v.MaxDimension > 0 {
		limit = v.MaxDimension
	}
	if info.Width > limit || info.Height > limit {
		return info, &DimensionError{Info: info, Max: limit}
	}
	return info, nil
}
