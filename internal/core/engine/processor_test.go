package engine

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
)

func pngOf(width, height uint32) []byte {
	buf := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	buf = append(buf, []byte("IHDR")...)
	buf = binary.BigEndian.AppendUint32(buf, width)
	buf = binary.BigEndian.AppendUint32(buf, height)
	return append(buf, 0x08, 0x06, 0x00, 0x00, 0x00)
}

type stubExtractor struct {
	mu      sync.Mutex
	replies map[string]string
	errs    map[string]error
	keys    []string
	reqs    []driver.ReceiptRequest
}

func (s *stubExtractor) Kind() driver.Kind { return driver.KindOpenAI }
func (s *stubExtractor) Model() string     { return "stub-model" }

func (s *stubExtractor) ExtractReceipt(ctx context.Context, apiKey string, req driver.ReceiptRequest) (*driver.Extraction, error) {
	s.mu.Lock()
	s.keys = append(s.keys, apiKey)
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()

	if err := s.errs[apiKey]; err != nil {
		return nil, err
	}
	draft, err := driver.DecodeDraft("stub", s.replies[apiKey])
	if err != nil {
		return nil, err
	}
	return &driver.Extraction{Draft: draft, Model: s.Model(), Raw: s.replies[apiKey]}, nil
}

func (s *stubExtractor) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.keys...)
}

type stubVoice struct {
	drafts []core.ExpenseDraft
	err    error
	req    driver.AudioRequest
}

func (s *stubVoice) Model() string { return "voice-model" }

func (s *stubVoice) ExtractAudio(ctx context.Context, apiKey string, req driver.AudioRequest) ([]core.ExpenseDraft, error) {
	s.req = req
	return s.drafts, s.err
}

type stubResolver struct {
	receipt  *ailink.Provider
	audio    *ailink.AudioProvider
	err      error
	resolved []string
}

func (r *stubResolver) ResolveReceipt(preferred string) (*ailink.Provider, error) {
	r.resolved = append(r.resolved, preferred)
	if r.err != nil {
		return nil, r.err
	}
	return r.receipt, nil
}

func (r *stubResolver) ResolveAudio(preferred string) (*ailink.AudioProvider, error) {
	if r.audio == nil {
		return nil, errors.New("no audio-capable provider")
	}
	return r.audio, nil
}

type memoryAttempts struct {
	mu       sync.Mutex
	attempts []core.ExtractionAttempt
}

func (m *memoryAttempts) InsertExtractionAttempt(ctx context.Context, attempt core.ExtractionAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, attempt)
	return nil
}

type memorySettings struct {
	settings      map[string]*core.UserSettings
	categories    map[string][]string
	settingsErr   error
	categoriesErr error
}

func (m *memorySettings) GetUserSettings(ctx context.Context, userID string) (*core.UserSettings, error) {
	if m.settingsErr != nil {
		return nil, m.settingsErr
	}
	return m.settings[userID], nil
}

func (m *memorySettings) ListCustomCategories(ctx context.Context, userID string) ([]string, error) {
	if m.categoriesErr != nil {
		return nil, m.categoriesErr
	}
	return m.categories[userID], nil
}

const goodReply = `{"merchant":"Corner Cafe","date":"2025-03-10","total":12.5,"category":"Food","lineItems":[{"description":"Latte","price":4.5}]}`

type processorFixture struct {
	processor *ReceiptProcessor
	quota     *memoryQuotaStore
	attempts  *memoryAttempts
	resolver  *stubResolver
	primary   *stubExtractor
	settings  *memorySettings
	clock     *fakeClock
}

func newProcessorFixture(t *testing.T, creds ...string) *processorFixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}
	quota := &memoryQuotaStore{}
	attempts := &memoryAttempts{}
	primary := &stubExtractor{replies: map[string]string{}, errs: map[string]error{}}
	resolver := &stubResolver{receipt: &ailink.Provider{ID: "openai-main", Kind: driver.KindOpenAI, Extractor: primary, Credentials: creds}}
	settings := &memorySettings{settings: map[string]*core.UserSettings{}, categories: map[string][]string{}}

	p := &ReceiptProcessor{
		Validator:         imagecheck.NewValidator(2000),
		Quota:             &QuotaManager{Store: quota, Limit: 10, Window: 24 * time.Hour, Clock: clock.Now},
		Providers:         resolver,
		Settings:          settings,
		Categories:        settings,
		Attempts:          &AttemptLogger{Store: attempts, Clock: clock.Now},
		DefaultCategories: []string{"Food", "Transport", "Other"},
		DefaultCurrency:   "usd",
		Clock:             clock.Now,
	}
	return &processorFixture{processor: p, quota: quota, attempts: attempts, resolver: resolver, primary: primary, settings: settings, clock: clock}
}

func TestProcessImageSuccess(t *testing.T) {
	f := newProcessorFixture(t, "key-1")
	f.primary.replies["key-1"] = goodReply

	draft, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(800, 600)})
	require.NoError(t, err)
	require.Equal(t, "Corner Cafe", draft.Merchant)
	require.Equal(t, "USD", draft.Currency)
	require.True(t, decimal.RequireFromString("12.5").Equal(draft.Total))
	require.Len(t, draft.LineItems, 1)
	require.True(t, decimal.NewFromInt(1).Equal(draft.LineItems[0].Quantity))

	require.Len(t, f.primary.reqs, 1)
	require.Equal(t, "image/png", f.primary.reqs[0].MediaType)
	require.Equal(t, "2025-03-10", f.primary.reqs[0].Today)
	require.Equal(t, []string{"Food", "Transport", "Other"}, f.primary.reqs[0].Categories)

	require.Equal(t, 1, f.quota.count())
	require.Len(t, f.attempts.attempts, 1)
	require.True(t, f.attempts.attempts[0].Succeeded)
	require.Equal(t, "openai-main", f.attempts.attempts[0].Provider)
}

func TestProcessImageOversizedSkipsProvider(t *testing.T) {
	f := newProcessorFixture(t, "key-1")
	f.primary.replies["key-1"] = goodReply

	_, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(4000, 3000)})
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	var dimErr *imagecheck.DimensionError
	require.ErrorAs(t, err, &dimErr)

	require.Empty(t, f.primary.calls())
	require.Empty(t, f.resolver.resolved)
	require.Zero(t, f.quota.count())
	require.Empty(t, f.attempts.attempts)
}

func TestProcessImageFallsBackAcrossCredentials(t *testing.T) {
	f := newProcessorFixture(t, "key-1", "key-2")
	f.primary.errs["key-1"] = &driver.ProviderError{Provider: "openai", StatusCode: 401, Message: "bad key"}
	f.primary.replies["key-2"] = goodReply

	draft, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(800, 600)})
	require.NoError(t, err)
	require.Equal(t, "Corner Cafe", draft.Merchant)
	require.Equal(t, []string{"key-1", "key-2"}, f.primary.calls())
	require.Equal(t, 1, f.quota.count())
	require.Len(t, f.attempts.attempts, 1)
}

func TestProcessImageMissingCategoryDoesNotCrossProviders(t *testing.T) {
	const noCategory = `{"merchant":"Corner Cafe","date":"2025-03-10","total":12.5}`

	for name, creds := range map[string][]string{
		"one key":  {"key-1"},
		"two keys": {"key-1", "key-2"},
	} {
		t.Run(name, func(t *testing.T) {
			f := newProcessorFixture(t, creds...)
			for _, key := range creds {
				f.primary.replies[key] = noCategory
			}

			_, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(800, 600)})
			require.Error(t, err)

			var extErr *ExtractionError
			require.ErrorAs(t, err, &extErr)
			require.Equal(t, "openai-main", extErr.Provider)
			require.Equal(t, "EXTRACTION_INVALID_OUTPUT", extErr.Failure.Code)

			var dataErr *driver.DataError
			require.ErrorAs(t, err, &dataErr)

			require.Len(t, f.resolver.resolved, 1)
			require.Equal(t, creds, f.primary.calls())
			require.Zero(t, f.quota.count())

			require.Len(t, f.attempts.attempts, 1)
			require.False(t, f.attempts.attempts[0].Succeeded)
			require.Contains(t, f.attempts.attempts[0].ErrorDetail, "EXTRACTION_INVALID_OUTPUT")
		})
	}
}

func TestProcessImageQuotaExhausted(t *testing.T) {
	f := newProcessorFixture(t, "key-1")
	f.primary.replies["key-1"] = goodReply
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.processor.ProcessImage(ctx, ImageInput{UserID: "u1", Image: pngOf(800, 600)})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	_, err := f.processor.ProcessImage(ctx, ImageInput{UserID: "u1", Image: pngOf(800, 600)})
	var qErr *QuotaExceededError
	require.ErrorAs(t, err, &qErr)
	require.Equal(t, 10, qErr.Used)
	require.Len(t, f.primary.calls(), 10)

	// another user is unaffected
	_, err = f.processor.ProcessImage(ctx, ImageInput{UserID: "u2", Image: pngOf(800, 600)})
	require.NoError(t, err)

	f.clock.Advance(24 * time.Hour)
	_, err = f.processor.ProcessImage(ctx, ImageInput{UserID: "u1", Image: pngOf(800, 600)})
	require.NoError(t, err)
}

func TestProcessImageFailureDoesNotConsumeQuota(t *testing.T) {
	f := newProcessorFixture(t, "key-1")
	f.primary.errs["key-1"] = &driver.ProviderError{Provider: "openai", StatusCode: 503, Message: "overloaded"}

	for i := 0; i < 3; i++ {
		_, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(800, 600)})
		require.Error(t, err)
	}
	require.Zero(t, f.quota.count())
	require.Len(t, f.attempts.attempts, 3)

	usage, err := f.processor.Usage(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 0, usage.Count)
	require.Equal(t, 10, usage.Remaining())
}

func TestProcessImageUsesUserSettings(t *testing.T) {
	f := newProcessorFixture(t, "key-1")
	f.primary.replies["key-1"] = `{"merchant":"Kiosk","date":"2025-03-09","total":"3.20","currencyCode":"GBP","category":"Coffee","lineItems":null}`
	f.settings.settings["u1"] = &core.UserSettings{UserID: "u1", PreferredProvider: "anthropic", DefaultCurrency: "eur"}
	f.settings.categories["u1"] = []string{"food", "Coffee"}

	draft, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: []byte("not an image at all")})
	require.NoError(t, err)
	require.Equal(t, "EUR", draft.Currency)
	require.NotNil(t, draft.LineItems)
	require.Empty(t, draft.LineItems)

	require.Equal(t, []string{"anthropic"}, f.resolver.resolved)
	require.Equal(t, []string{"Food", "Transport", "Other", "Coffee"}, f.primary.reqs[0].Categories)
}

func TestProcessImageResolveFailureIsLogged(t *testing.T) {
	f := newProcessorFixture(t)
	f.resolver.err = errors.New("default provider openai is disabled")

	_, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(10, 10)})
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Len(t, f.attempts.attempts, 1)
	require.Equal(t, "unresolved", f.attempts.attempts[0].Provider)
	require.Zero(t, f.quota.count())
}

func TestProcessImageSettingsFailureIsLogged(t *testing.T) {
	storeDown := errors.New("database is locked")

	for name, setup := range map[string]func(*memorySettings){
		"settings":   func(m *memorySettings) { m.settingsErr = storeDown },
		"categories": func(m *memorySettings) { m.categoriesErr = storeDown },
	} {
		t.Run(name, func(t *testing.T) {
			f := newProcessorFixture(t, "key-1")
			f.primary.replies["key-1"] = goodReply
			setup(f.settings)

			_, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(10, 10)})
			require.ErrorIs(t, err, storeDown)

			require.Empty(t, f.primary.calls())
			require.Empty(t, f.resolver.resolved)
			require.Zero(t, f.quota.count())
			require.Len(t, f.attempts.attempts, 1)
			require.Equal(t, "unresolved", f.attempts.attempts[0].Provider)
			require.Equal(t, core.AttemptKindImage, f.attempts.attempts[0].Kind)
			require.False(t, f.attempts.attempts[0].Succeeded)
		})
	}
}

func TestProcessAudioSettingsFailureIsLogged(t *testing.T) {
	f := newProcessorFixture(t)
	f.settings.categoriesErr = errors.New("database is locked")

	_, err := f.processor.ProcessAudio(context.Background(), AudioInput{UserID: "u1", Audio: []byte("RIFF")})
	require.Error(t, err)
	require.Len(t, f.attempts.attempts, 1)
	require.Equal(t, "unresolved", f.attempts.attempts[0].Provider)
	require.Equal(t, core.AttemptKindAudio, f.attempts.attempts[0].Kind)
}

func TestProcessImageNoCredentials(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.processor.ProcessImage(context.Background(), ImageInput{UserID: "u1", Image: pngOf(10, 10)})
	require.ErrorIs(t, err, ailink.ErrNoCredentials)
	var extErr *ExtractionError
	require.ErrorAs(t, err, &extErr)
	require.Equal(t, "EXTRACTION_NO_CREDENTIALS", extErr.Failure.Code)
}

func TestProcessAudio(t *testing.T) {
	f := newProcessorFixture(t)
	voice := &stubVoice{drafts: []core.ExpenseDraft{
		{Merchant: "Bus", Date: "2025-03-10", Total: decimal.RequireFromString("2.5"), Category: "Transport", LineItems: []core.LineItem{}},
		{Merchant: "Bakery", Date: "2025-03-10", Total: decimal.RequireFromString("4"), Category: "Food", LineItems: []core.LineItem{}},
	}}
	f.resolver.audio = &ailink.AudioProvider{ID: "openai-main", Extractor: voice, Credentials: ailink.CredentialSet{"key-1"}}

	drafts, err := f.processor.ProcessAudio(context.Background(), AudioInput{UserID: "u1", Audio: []byte("RIFF"), Format: "wav", LocalDate: "2025-03-10"})
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	require.Equal(t, "USD", drafts[0].Currency)
	require.Equal(t, "USD", voice.req.Currency)
	require.Equal(t, "2025-03-10", voice.req.LocalDate)
	require.Equal(t, 1, f.quota.count())
	require.Equal(t, core.AttemptKindAudio, f.attempts.attempts[0].Kind)
}

func TestProcessAudioEmptyResult(t *testing.T) {
	f := newProcessorFixture(t)
	f.resolver.audio = &ailink.AudioProvider{ID: "openai-main", Extractor: &stubVoice{}, Credentials: ailink.CredentialSet{"key-1"}}

	drafts, err := f.processor.ProcessAudio(context.Background(), AudioInput{UserID: "u1", Audio: []byte("RIFF")})
	require.NoError(t, err)
	require.NotNil(t, drafts)
	require.Empty(t, drafts)
}

func TestProcessAudioRejectsBadDate(t *testing.T) {
	f := newProcessorFixture(t)

	_, err := f.processor.ProcessAudio(context.Background(), AudioInput{UserID: "u1", Audio: []byte("RIFF"), LocalDate: "10/03/2025"})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Equal(t, "date", vErr.Field)
}

func TestMergeCategories(t *testing.T) {
	merged := MergeCategories([]string{"Food", " Transport ", ""}, []string{"FOOD", "Pets", "pets"})
	require.Equal(t, []string{"Food", "Transport", "Pets"}, merged)
	require.Empty(t, MergeCategories(nil, nil))
}
