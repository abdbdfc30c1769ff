package ailink

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver/anthropic"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver/ocr"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver/openai"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/driver/xai"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/prompt"
)

// Model purposes in ProviderInstanceConfig.Models.
const (
	ModelReceipt   = "receipt"
	ModelAudio     = "audio"
	ModelStructure = "structure"
)

var defaultModels = map[driver.Kind]string{
	driver.KindOpenAI:    "gpt-4o-mini",
	driver.KindXAI:       "grok-2-vision-1212",
	driver.KindAnthropic: "claude-3-5-haiku-latest",
	driver.KindOCR:       "gpt-4o-mini",
}

const defaultAudioModel = "gpt-4o-audio-preview"

// Provider is a resolved receipt backend plus the credentials to try.
type Provider struct {
	ID          string
	Kind        driver.Kind
	Extractor   driver.Extractor
	Credentials CredentialSet
}

// AudioProvider is a resolved voice backend.
type AudioProvider struct {
	ID          string
	Extractor   driver.AudioExtractor
	Credentials CredentialSet
}

// Registry resolves configured provider instances into extractors. Clients
// are built once per provider id and shared across requests.
type Registry struct {
	cfg        Config
	prompts    prompt.Registry
	HTTPClient *http.Client

	mu         sync.Mutex
	extractors map[string]driver.Extractor
	voices     map[string]driver.AudioExtractor
}

func NewRegistry(cfg Config, prompts prompt.Registry) *Registry {
	return &Registry{cfg: cfg, prompts: prompts}
}

// ResolveReceipt picks the user's preferred provider when it is configured
// and enabled, otherwise the default provider. preferred may name a provider
// id or a provider kind.
func (r *Registry) ResolveReceipt(preferred string) (*Provider, error) {
	id, providerCfg, err := r.resolveProvider(preferred, nil)
	if err != nil {
		return nil, err
	}
	kind, err := driver.ParseKind(providerCfg.AIProvider)
	if err != nil {
		return nil, fmt.Errorf("provider %q: %w", id, err)
	}

	extractor, err := r.extractorFor(id, kind, providerCfg)
	if err != nil {
		return nil, err
	}
	return &Provider{ID: id, Kind: kind, Extractor: extractor, Credentials: credentialsFor(providerCfg)}, nil
}

// ResolveAudio picks an audio-capable provider: the preference if it can take
// audio, then audio_provider, then any enabled openai instance.
func (r *Registry) ResolveAudio(preferred string) (*AudioProvider, error) {
	supportsAudio := func(cfg ProviderInstanceConfig) bool {
		kind, err := driver.ParseKind(cfg.AIProvider)
		return err == nil && kind == driver.KindOpenAI
	}

	id, providerCfg, err := r.resolveProvider(preferred, supportsAudio)
	if err != nil {
		return nil, fmt.Errorf("no audio-capable provider: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.voices == nil {
		r.voices = map[string]driver.AudioExtractor{}
	}
	extractor, ok := r.voices[id]
	if !ok {
		client := openai.NewClient(providerCfg.BaseURL)
		client.Timeout = r.cfg.DefaultTimeout
		client.HTTPClient = r.HTTPClient
		extractor = NewVoiceExtractor(modelFor(providerCfg, ModelAudio, defaultAudioModel), client, r.prompts)
		r.voices[id] = extractor
	}
	return &AudioProvider{ID: id, Extractor: extractor, Credentials: credentialsFor(providerCfg)}, nil
}

// ProviderIDs lists enabled provider ids in sorted order.
func (r *Registry) ProviderIDs() []string {
	if r == nil {
		return nil
	}
	ids := make([]string, 0, len(r.cfg.Providers))
	for id, cfg := range r.cfg.Providers {
		if cfg.Enabled {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) resolveProvider(preferred string, accept func(ProviderInstanceConfig) bool) (string, ProviderInstanceConfig, error) {
	if r == nil {
		return "", ProviderInstanceConfig{}, fmt.Errorf("ailink registry not configured")
	}
	usable := func(cfg ProviderInstanceConfig) bool {
		return cfg.Enabled && (accept == nil || accept(cfg))
	}

	if preferred = strings.TrimSpace(preferred); preferred != "" {
		if cfg, ok := r.cfg.Providers[preferred]; ok && usable(cfg) {
			return preferred, cfg, nil
		}
		for _, id := range r.ProviderIDs() {
			cfg := r.cfg.Providers[id]
			if strings.EqualFold(strings.TrimSpace(cfg.AIProvider), preferred) && usable(cfg) {
				return id, cfg, nil
			}
		}
	}

	defaults := []string{r.cfg.DefaultProvider}
	if accept != nil {
		defaults = []string{r.cfg.AudioProvider, r.cfg.DefaultProvider}
	}
	for _, id := range defaults {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		cfg, ok := r.cfg.Providers[id]
		if !ok {
			if accept == nil {
				return "", ProviderInstanceConfig{}, fmt.Errorf("default provider %q not configured", id)
			}
			continue
		}
		if usable(cfg) {
			return id, cfg, nil
		}
		if accept == nil {
			return "", ProviderInstanceConfig{}, fmt.Errorf("default provider %q is disabled", id)
		}
	}

	for _, id := range r.ProviderIDs() {
		if cfg := r.cfg.Providers[id]; usable(cfg) {
			return id, cfg, nil
		}
	}
	return "", ProviderInstanceConfig{}, fmt.Errorf("no enabled providers configured")
}

func (r *Registry) extractorFor(id string, kind driver.Kind, cfg ProviderInstanceConfig) (driver.Extractor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.extractors == nil {
		r.extractors = map[string]driver.Extractor{}
	}
	if extractor, ok := r.extractors[id]; ok {
		return extractor, nil
	}

	var extractor driver.Extractor
	switch kind {
	case driver.KindOpenAI:
		client := openai.NewClient(cfg.BaseURL)
		client.Timeout, client.HTTPClient = r.cfg.DefaultTimeout, r.HTTPClient
		extractor = NewVisionExtractor(kind, modelFor(cfg, ModelReceipt, defaultModels[kind]), client, r.prompts)
	case driver.KindXAI:
		client := xai.NewClient(cfg.BaseURL)
		client.Timeout, client.HTTPClient = r.cfg.DefaultTimeout, r.HTTPClient
		extractor = NewVisionExtractor(kind, modelFor(cfg, ModelReceipt, defaultModels[kind]), client, r.prompts)
	case driver.KindAnthropic:
		client := anthropic.NewClient(cfg.BaseURL)
		client.Timeout, client.HTTPClient = r.cfg.DefaultTimeout, r.HTTPClient
		extractor = NewVisionExtractor(kind, modelFor(cfg, ModelReceipt, defaultModels[kind]), client, r.prompts)
	case driver.KindOCR:
		recognizer := ocr.NewClient(cfg.OCR.BaseURL)
		if lang := strings.TrimSpace(cfg.OCR.Language); lang != "" {
			recognizer.Language = lang
		}
		if cfg.OCR.Engine > 0 {
			recognizer.Engine = cfg.OCR.Engine
		}
		recognizer.Timeout, recognizer.HTTPClient = r.cfg.DefaultTimeout, r.HTTPClient

		structurer := openai.NewClient(cfg.BaseURL)
		structurer.Timeout, structurer.HTTPClient = r.cfg.DefaultTimeout, r.HTTPClient
		extractor = NewTwoStageExtractor(recognizer, cfg.OCR.APIKey, modelFor(cfg, ModelStructure, defaultModels[kind]), structurer, r.prompts)
	default:
		return nil, fmt.Errorf("unsupported ai_provider %q for provider %q", kind, id)
	}

	r.extractors[id] = extractor
	return extractor, nil
}

func modelFor(cfg ProviderInstanceConfig, purpose, fallback string) string {
	if model := strings.TrimSpace(cfg.Models[purpose]); model != "" {
		return model
	}
	return fallback
}

// credentialsFor returns enabled, non-empty keys, highest priority first.
// Equal priorities keep their configured order.
func credentialsFor(cfg ProviderInstanceConfig) CredentialSet {
	usable := make([]CredentialConfig, 0, len(cfg.Credentials))
	for _, cred := range cfg.Credentials {
		if !cred.Enabled || strings.TrimSpace(cred.APIKey) == "" {
			continue
		}
		usable = append(usable, cred)
	}
	sort.SliceStable(usable, func(i, j int) bool {
		return usable[i].Priority > usable[j].Priority
	})

	keys := make(CredentialSet, 0, len(usable))
	for _, cred := range usable {
		keys = append(keys, strings.TrimSpace(cred.APIKey))
	}
	return keys
}
