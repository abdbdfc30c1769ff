package content

import "strings"

// ContentType represents supported content types using IANA media types.
// Binary blocks carry their concrete media type (image/png, audio/wav, ...).
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	ContentTypeJSON ContentType = "application/json"
)

// ContentBlock represents a single piece of content.
type ContentBlock struct {
	Type    ContentType `json:"type"`
	Text    string      `json:"text,omitempty"`
	Data    []byte      `json:"data,omitempty"`
	DataURL string      `json:"data_url,omitempty"`
}

// IsImage reports whether the block holds image bytes.
func (b ContentBlock) IsImage() bool {
	return strings.HasPrefix(string(b.Type), "image/")
}

// IsAudio reports whether the block holds audio bytes.
func (b ContentBlock) IsAudio() bool {
	return strings.HasPrefix(string(b.Type), "audio/")
}

// Subtype returns the part after the slash, e.g. "wav" for audio/wav.
func (b ContentBlock) Subtype() string {
	_, sub, _ := strings.Cut(string(b.Type), "/")
	return sub
}

// Message represents a chat message.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text builds a plain-text block.
func Text(value string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: value}
}

// Image builds an image block. An empty media type defaults to image/jpeg.
func Image(mediaType string, data []byte) ContentBlock {
	if strings.TrimSpace(mediaType) == "" {
		mediaType = "image/jpeg"
	}
	return ContentBlock{Type: ContentType(mediaType), Data: data}
}

// Audio builds an audio block from a short format name such as "wav" or "mp3".
func Audio(format string, data []byte) ContentBlock {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.TrimPrefix(format, "audio/")
	if format == "" {
		format = "wav"
	}
	return ContentBlock{Type: ContentType("audio/" + format), Data: data}
}

// System and User are shorthands for single-role messages.
func System(text string) Message {
	return Message{Role: "system", Content: []ContentBlock{Text(text)}}
}

func User(blocks ...ContentBlock) Message {
	return Message{Role: "user", Content: blocks}
}
