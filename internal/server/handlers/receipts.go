package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	fulerrors "github.com/fulmenhq/gofulmen/errors"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/encode"
	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
	"github.com/mou514/FinanceMate-sub000/internal/server/middleware"
)

// DefaultMaxUploadBytes caps receipt and audio request bodies.
const DefaultMaxUploadBytes int64 = 10 << 20

// ReceiptService is the extraction pipeline as seen by HTTP.
type ReceiptService interface {
	ProcessImage(ctx context.Context, in engine.ImageInput) (*core.ExpenseDraft, error)
	ProcessAudio(ctx context.Context, in engine.AudioInput) ([]core.ExpenseDraft, error)
	Usage(ctx context.Context, userID string) (core.QuotaUsage, error)
}

// ReceiptHandler serves /receipts.
type ReceiptHandler struct {
	Service        ReceiptService
	MaxUploadBytes int64
	Clock          func() time.Time
}

type processImageRequest struct {
	Image string `json:"image"`
}

// AudioReceipts wraps voice results as {receipts:[...]}.
type AudioReceipts struct {
	Receipts []core.ExpenseDraft `json:"receipts"`
}

// QuotaResponse reports the caller's quota. ResetAt is epoch milliseconds
// and ResetIn is seconds; both are zero when nothing is in the window.
type QuotaResponse struct {
	Limit     int   `json:"limit"`
	Used      int   `json:"used"`
	Remaining int   `json:"remaining"`
	ResetAt   int64 `json:"resetAt"`
	ResetIn   int64 `json:"resetIn"`
}

func validationEnvelope(message string) *fulerrors.ErrorEnvelope {
	return fulerrors.NewErrorEnvelope("VALIDATION_FAILED", message)
}

// ProcessImage handles POST /receipts/process with a data-URI image.
func (h *ReceiptHandler) ProcessImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())

	var req processImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, r, fulerrors.NewErrorEnvelope("PAYLOAD_TOO_LARGE", "request body too large"))
			return
		}
		respondWithError(w, r, validationEnvelope("request body must be JSON with an image field"))
		return
	}
	if strings.TrimSpace(req.Image) == "" {
		respondWithError(w, r, validationEnvelope("image is required"))
		return
	}

	mediaType, data, err := encode.ParseDataURL(req.Image)
	if err != nil {
		respondWithError(w, r, validationEnvelope("image must be a base64 data URI"))
		return
	}
	if mediaType != "" && !strings.HasPrefix(mediaType, "image/") {
		respondWithError(w, r, validationEnvelope("data URI must carry an image media type"))
		return
	}

	draft, err := h.Service.ProcessImage(r.Context(), engine.ImageInput{
		UserID:    middleware.UserID(r.Context()),
		Image:     data,
		MediaType: mediaType,
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, draft)
}

// ProcessAudio handles POST /receipts/process-audio (multipart: audio, date).
func (h *ReceiptHandler) ProcessAudio(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes())

	if err := r.ParseMultipartForm(h.maxBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, r, fulerrors.NewErrorEnvelope("PAYLOAD_TOO_LARGE", "request body too large"))
			return
		}
		respondWithError(w, r, validationEnvelope("request must be multipart/form-data"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("audio")
	if err != nil {
		respondWithError(w, r, validationEnvelope("audio file is required"))
		return
	}
	defer file.Close() // nolint:errcheck // best-effort cleanup

	contentType := header.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.HasPrefix(mediaType, "audio/") {
		respondWithError(w, r, validationEnvelope("uploaded file must be an audio type"))
		return
	}

	audio, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, r, validationEnvelope("unable to read audio file"))
		return
	}

	drafts, err := h.Service.ProcessAudio(r.Context(), engine.AudioInput{
		UserID:    middleware.UserID(r.Context()),
		Audio:     audio,
		Format:    audioFormat(mediaType, header.Filename),
		LocalDate: strings.TrimSpace(r.FormValue("date")),
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	respondWithData(w, http.StatusOK, AudioReceipts{Receipts: drafts})
}

// Quota handles GET /receipts/quota.
func (h *ReceiptHandler) Quota(w http.ResponseWriter, r *http.Request) {
	usage, err := h.Service.Usage(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	resp := QuotaResponse{Limit: usage.Limit, Used: usage.Count, Remaining: usage.Remaining()}
	if usage.ResetAt != nil {
		resp.ResetAt = usage.ResetAt.UnixMilli()
		if in := usage.ResetAt.Sub(h.now()); in > 0 {
			resp.ResetIn = int64(in.Round(time.Second) / time.Second)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *ReceiptHandler) maxBytes() int64 {
	if h.MaxUploadBytes > 0 {
		return h.MaxUploadBytes
	}
	return DefaultMaxUploadBytes
}

func (h *ReceiptHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}

// audioFormat maps an upload to the short format name providers expect.
func audioFormat(mediaType, filename string) string {
	switch strings.TrimPrefix(mediaType, "audio/") {
	case "mpeg", "mp3":
		return "mp3"
	case "wav", "x-wav", "wave", "vnd.wave":
		return "wav"
	case "webm":
		return "webm"
	case "ogg":
		return "ogg"
	case "mp4", "m4a", "x-m4a":
		return "m4a"
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."); ext != "" {
		return ext
	}
	return "wav"
}
