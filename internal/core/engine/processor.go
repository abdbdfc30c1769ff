package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
	"github.com/mou514/FinanceMate-sub000/internal/metrics"
)

// DefaultQuotaAction keys receipt and voice extractions in the quota store.
const DefaultQuotaAction = "receipt_extraction"

// SettingsReader loads per-user preferences. A nil result means defaults.
type SettingsReader interface {
	GetUserSettings(ctx context.Context, userID string) (*core.UserSettings, error)
}

// CategoryReader lists a user's custom category names.
type CategoryReader interface {
	ListCustomCategories(ctx context.Context, userID string) ([]string, error)
}

// ProviderResolver picks the backend and credentials for a request.
type ProviderResolver interface {
	ResolveReceipt(preferred string) (*ailink.Provider, error)
	ResolveAudio(preferred string) (*ailink.AudioProvider, error)
}

// ReceiptProcessor runs an upload through validation, quota, provider
// resolution and credential fallback, and returns the extracted draft.
type ReceiptProcessor struct {
	Validator  *imagecheck.Validator
	Quota      *QuotaManager
	Providers  ProviderResolver
	Settings   SettingsReader
	Categories CategoryReader
	Attempts   *AttemptLogger

	QuotaAction       string
	DefaultCategories []string
	DefaultCurrency   string
	CredentialTimeout time.Duration

	Logger *logging.Logger
	Clock  func() time.Time
}

// ImageInput is a decoded receipt upload.
type ImageInput struct {
	UserID    string
	Image     []byte
	MediaType string
	// Today overrides the caller's civil date; empty uses the clock.
	Today string
}

// AudioInput is a voice recording upload.
type AudioInput struct {
	UserID    string
	Audio     []byte
	Format    string
	LocalDate string
}

// ValidationError rejects a request before any remote call.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ExtractionError reports a failed extraction after fallback.
type ExtractionError struct {
	Provider string
	Failure  *ailink.Failure
	Err      error
}

func (e *ExtractionError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("extraction failed: %v", e.Err)
	}
	return fmt.Sprintf("extraction with %s failed: %v", e.Provider, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// requestContext is what every extraction resolves before calling out.
type requestContext struct {
	preferred  string
	currency   string
	categories []string
}

// ProcessImage extracts a draft from a receipt image. Quota is charged only
// when a draft is returned.
func (p *ReceiptProcessor) ProcessImage(ctx context.Context, in ImageInput) (*core.ExpenseDraft, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, &ValidationError{Field: "user", Reason: "user id is required"}
	}
	if len(in.Image) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "image is empty"}
	}

	info, err := p.Validator.Validate(in.Image)
	if err != nil {
		metrics.RecordImageRejection(string(info.Format))
		return nil, &ValidationError{Field: "image", Reason: err.Error(), Err: err}
	}
	mediaType := strings.TrimSpace(in.MediaType)
	if info.Format != imagecheck.FormatUnknown {
		mediaType = "image/" + string(info.Format)
	}

	if err := p.checkQuota(ctx, in.UserID); err != nil {
		return nil, err
	}

	attempt := core.ExtractionAttempt{Identifier: in.UserID, Kind: core.AttemptKindImage}
	start := time.Now()

	rc, err := p.resolveContext(ctx, in.UserID)
	if err != nil {
		p.recordUnresolved(ctx, attempt, start, err)
		return nil, err
	}

	today := strings.TrimSpace(in.Today)
	if today == "" {
		today = p.now().Format(core.DateLayout)
	}
	req := driver.ReceiptRequest{Image: in.Image, MediaType: mediaType, Categories: rc.categories, Today: today}

	provider, err := p.Providers.ResolveReceipt(rc.preferred)
	if err != nil {
		p.recordUnresolved(ctx, attempt, start, err)
		return nil, &ExtractionError{Failure: ailink.Classify(err, p.debug()), Err: fmt.Errorf("resolve provider: %w", err)}
	}
	attempt.Provider, attempt.Model = provider.ID, provider.Extractor.Model()

	extraction, err := ailink.ExecuteWithFallback(ctx, provider.Credentials,
		func(ctx context.Context, key string) (*driver.Extraction, error) {
			return provider.Extractor.ExtractReceipt(ctx, key, req)
		},
		p.fallbackOptions(provider.ID)...,
	)
	attempt.Duration = time.Since(start)
	p.Attempts.Record(ctx, attempt, err)
	if err != nil {
		return nil, &ExtractionError{Provider: provider.ID, Failure: ailink.Classify(err, p.debug()), Err: err}
	}

	p.recordUsage(ctx, in.UserID)

	draft := extraction.Draft
	draft.Currency = rc.currency
	if draft.LineItems == nil {
		draft.LineItems = []core.LineItem{}
	}
	return &draft, nil
}

// ProcessAudio extracts zero or more drafts from a voice recording.
func (p *ReceiptProcessor) ProcessAudio(ctx context.Context, in AudioInput) ([]core.ExpenseDraft, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(in.UserID) == "" {
		return nil, &ValidationError{Field: "user", Reason: "user id is required"}
	}
	if len(in.Audio) == 0 {
		return nil, &ValidationError{Field: "audio", Reason: "audio is empty"}
	}
	localDate := strings.TrimSpace(in.LocalDate)
	if localDate == "" {
		localDate = p.now().Format(core.DateLayout)
	} else if _, err := time.Parse(core.DateLayout, localDate); err != nil {
		return nil, &ValidationError{Field: "date", Reason: "date must be YYYY-MM-DD", Err: err}
	}

	if err := p.checkQuota(ctx, in.UserID); err != nil {
		return nil, err
	}

	attempt := core.ExtractionAttempt{Identifier: in.UserID, Kind: core.AttemptKindAudio}
	start := time.Now()

	rc, err := p.resolveContext(ctx, in.UserID)
	if err != nil {
		p.recordUnresolved(ctx, attempt, start, err)
		return nil, err
	}
	req := driver.AudioRequest{
		Audio:      in.Audio,
		Format:     in.Format,
		LocalDate:  localDate,
		Currency:   rc.currency,
		Categories: rc.categories,
	}

	provider, err := p.Providers.ResolveAudio(rc.preferred)
	if err != nil {
		p.recordUnresolved(ctx, attempt, start, err)
		return nil, &ExtractionError{Failure: ailink.Classify(err, p.debug()), Err: fmt.Errorf("resolve audio provider: %w", err)}
	}
	attempt.Provider, attempt.Model = provider.ID, provider.Extractor.Model()

	drafts, err := ailink.ExecuteWithFallback(ctx, provider.Credentials,
		func(ctx context.Context, key string) ([]core.ExpenseDraft, error) {
			return provider.Extractor.ExtractAudio(ctx, key, req)
		},
		p.fallbackOptions(provider.ID)...,
	)
	attempt.Duration = time.Since(start)
	p.Attempts.Record(ctx, attempt, err)
	if err != nil {
		return nil, &ExtractionError{Provider: provider.ID, Failure: ailink.Classify(err, p.debug()), Err: err}
	}

	p.recordUsage(ctx, in.UserID)

	if drafts == nil {
		drafts = []core.ExpenseDraft{}
	}
	for i := range drafts {
		drafts[i].Currency = rc.currency
	}
	return drafts, nil
}

// Usage reports the caller's position in the quota window.
func (p *ReceiptProcessor) Usage(ctx context.Context, userID string) (core.QuotaUsage, error) {
	if strings.TrimSpace(userID) == "" {
		return core.QuotaUsage{}, &ValidationError{Field: "user", Reason: "user id is required"}
	}
	return p.Quota.CurrentUsage(ctx, p.action(), userID)
}

func (p *ReceiptProcessor) checkQuota(ctx context.Context, userID string) error {
	err := p.Quota.Check(ctx, p.action(), userID)
	if err == nil {
		return nil
	}
	var exceeded *QuotaExceededError
	if errors.As(err, &exceeded) {
		metrics.RecordQuotaRejection(exceeded.Action)
		if p.Logger != nil {
			p.Logger.Info("Quota exceeded",
				zap.String("identifier", userID),
				zap.Int("used", exceeded.Used),
				zap.Int("limit", exceeded.Limit),
				zap.Time("reset_at", exceeded.ResetAt))
		}
		return err
	}
	return fmt.Errorf("check quota: %w", err)
}

func (p *ReceiptProcessor) recordUsage(ctx context.Context, userID string) {
	if err := p.Quota.RecordUsage(ctx, p.action(), userID); err != nil && p.Logger != nil {
		// The draft is already paid for by the provider; return it anyway.
		p.Logger.Error("Failed to record quota usage", zap.String("identifier", userID), zap.Error(err))
	}
}

func (p *ReceiptProcessor) resolveContext(ctx context.Context, userID string) (requestContext, error) {
	rc := requestContext{currency: strings.ToUpper(strings.TrimSpace(p.DefaultCurrency))}

	if p.Settings != nil {
		settings, err := p.Settings.GetUserSettings(ctx, userID)
		if err != nil {
			return rc, fmt.Errorf("load user settings: %w", err)
		}
		if settings != nil {
			rc.preferred = strings.TrimSpace(settings.PreferredProvider)
			if currency := strings.TrimSpace(settings.DefaultCurrency); currency != "" {
				rc.currency = strings.ToUpper(currency)
			}
		}
	}
	if rc.currency == "" {
		rc.currency = "USD"
	}

	var custom []string
	if p.Categories != nil {
		names, err := p.Categories.ListCustomCategories(ctx, userID)
		if err != nil {
			return rc, fmt.Errorf("load categories: %w", err)
		}
		custom = names
	}
	rc.categories = MergeCategories(p.DefaultCategories, custom)
	return rc, nil
}

// recordUnresolved logs a failure that happened before any provider was
// called.
func (p *ReceiptProcessor) recordUnresolved(ctx context.Context, attempt core.ExtractionAttempt, start time.Time, err error) {
	attempt.Provider = "unresolved"
	attempt.Duration = time.Since(start)
	p.Attempts.Record(ctx, attempt, err)
}

func (p *ReceiptProcessor) fallbackOptions(providerID string) []ailink.FallbackOption {
	opts := []ailink.FallbackOption{ailink.WithCredentialTimeout(p.CredentialTimeout)}
	if p.Logger != nil {
		opts = append(opts, ailink.WithAttemptHook(func(a ailink.CredentialAttempt) {
			if a.Err != nil {
				p.Logger.Debug("Credential attempt failed",
					zap.String("provider", providerID),
					zap.Int("credential_index", a.Index),
					zap.Duration("duration", a.Duration),
					zap.Error(a.Err))
			}
		}))
	}
	return opts
}

func (p *ReceiptProcessor) debug() ailink.DebugConfig {
	if p.Attempts != nil {
		return p.Attempts.Debug
	}
	return ailink.DebugConfig{}
}

func (p *ReceiptProcessor) action() string {
	if a := strings.TrimSpace(p.QuotaAction); a != "" {
		return a
	}
	return DefaultQuotaAction
}

func (p *ReceiptProcessor) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// MergeCategories returns defaults followed by custom names, dropping blanks
// and case-insensitive duplicates. The first spelling wins.
func MergeCategories(defaults, custom []string) []string {
	seen := make(map[string]bool, len(defaults)+len(custom))
	merged := make([]string, 0, len(defaults)+len(custom))
	for _, list := range [][]string{defaults, custom} {
		for _, name := range list {
			name = strings.TrimSpace(name)
			key := strings.ToLower(name)
			if name == "" || seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, name)
		}
	}
	return merged
}
