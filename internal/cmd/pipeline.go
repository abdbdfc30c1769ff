package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/ailink"
	"github.com/mou514/FinanceMate-sub000/internal/ailink/prompt"
	"github.com/mou514/FinanceMate-sub000/internal/config"
	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
	"github.com/mou514/FinanceMate-sub000/internal/core/store"
	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
	"github.com/mou514/FinanceMate-sub000/internal/notify"
)

// pipeline is the set of services shared by serve and the offline commands.
type pipeline struct {
	Registry  *ailink.Registry
	Processor *engine.ReceiptProcessor
	Budgets   *engine.BudgetChecker
	Expenses  *engine.ExpenseService
	Publisher *notify.Publisher
}

// buildPipeline wires the extraction pipeline over st. withPublisher
// connects to NATS when a URL is configured; a failed connection is logged
// and alerts stay in-app only.
func buildPipeline(cfg *config.Config, st *store.Store, logger *logging.Logger, withPublisher bool) (*pipeline, error) {
	prompts, err := prompt.LoadRegistry(cfg.AILink.PromptsDir)
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	registry := ailink.NewRegistry(cfg.AILink, prompts)

	processor := &engine.ReceiptProcessor{
		Validator: imagecheck.NewValidator(cfg.Receipts.MaxDimension),
		Quota: &engine.QuotaManager{
			Store:  st,
			Limit:  cfg.Quota.Limit,
			Window: cfg.Quota.Window,
		},
		Providers:  registry,
		Settings:   st,
		Categories: st,
		Attempts: &engine.AttemptLogger{
			Store:  st,
			Debug:  cfg.AILink.Debug,
			Logger: logger,
		},
		QuotaAction:       cfg.Quota.Action,
		DefaultCategories: cfg.Receipts.DefaultCategories,
		DefaultCurrency:   cfg.Receipts.DefaultCurrency,
		CredentialTimeout: cfg.AILink.CredentialTimeout,
		Logger:            logger,
	}

	budgets := &engine.BudgetChecker{
		Store:                   st,
		DefaultThresholdPercent: cfg.Budget.DefaultThresholdPercent,
		Logger:                  logger,
	}

	p := &pipeline{
		Registry:  registry,
		Processor: processor,
		Budgets:   budgets,
		Expenses: &engine.ExpenseService{
			Store:           st,
			Budgets:         budgets,
			DefaultCurrency: cfg.Receipts.DefaultCurrency,
			Logger:          logger,
		},
	}

	if withPublisher && strings.TrimSpace(cfg.Notifications.NATSURL) != "" {
		publisher, err := notify.Connect(cfg.Notifications.NATSURL, cfg.Notifications.Subject, logger)
		if err != nil {
			logger.Warn("Budget alert publishing disabled",
				zap.String("nats_url", cfg.Notifications.NATSURL),
				zap.Error(err))
		} else {
			p.Publisher = publisher
			budgets.Publisher = publisher
		}
	}

	return p, nil
}

// Close releases the publisher connection, if any.
func (p *pipeline) Close() error {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Close()
}
