package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mou514/FinanceMate-sub000/internal/core"
	"github.com/mou514/FinanceMate-sub000/internal/core/engine"
	"github.com/mou514/FinanceMate-sub000/internal/imagecheck"
	"github.com/mou514/FinanceMate-sub000/internal/observability"
	"github.com/mou514/FinanceMate-sub000/internal/output"
)

const localUser = "local"

var audioExtensions = map[string]string{
	".mp3":  "mp3",
	".wav":  "wav",
	".webm": "webm",
	".ogg":  "ogg",
	".m4a":  "m4a",
	".mp4":  "m4a",
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extract expenses from a receipt image or voice recording",
	Long: `Run a local receipt image or voice recording through the extraction
pipeline. The same validation, quota and provider fallback rules apply as for
the HTTP API, and the attempt is written to the audit log.

Use --commit to save the extracted expenses and run the budget check.`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().String("user", localUser, "User id the extraction is charged to")
	extractCmd.Flags().Bool("audio", false, "Treat the file as a voice recording regardless of extension")
	extractCmd.Flags().String("date", "", "Date (YYYY-MM-DD) for relative dates in recordings (default today)")
	extractCmd.Flags().Bool("commit", false, "Save the extracted expenses")
	addOutputFlags(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]
	userID, _ := cmd.Flags().GetString("user")
	forceAudio, _ := cmd.Flags().GetBool("audio")
	date, _ := cmd.Flags().GetString("date")
	commit, _ := cmd.Flags().GetBool("commit")

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return errors.New("--user must not be empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	st, cfg, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() // nolint:errcheck // best-effort cleanup

	pipe, err := buildPipeline(cfg, st, observability.CLILogger, false)
	if err != nil {
		return err
	}

	var drafts []core.ExpenseDraft
	format, isAudio := audioExtensions[strings.ToLower(filepath.Ext(path))]
	if forceAudio || isAudio {
		if format == "" {
			format = "wav"
		}
		drafts, err = pipe.Processor.ProcessAudio(ctx, engine.AudioInput{
			UserID:    userID,
			Audio:     data,
			Format:    format,
			LocalDate: strings.TrimSpace(date),
		})
	} else {
		mediaType := ""
		if info, ok := imagecheck.Sniff(data); ok {
			mediaType = info.Format.MediaType()
		}
		var draft *core.ExpenseDraft
		draft, err = pipe.Processor.ProcessImage(ctx, engine.ImageInput{
			UserID:    userID,
			Image:     data,
			MediaType: mediaType,
			Today:     strings.TrimSpace(date),
		})
		if draft != nil {
			drafts = []core.ExpenseDraft{*draft}
		}
	}
	if err != nil {
		return describeExtractError(err)
	}

	if commit {
		for _, draft := range drafts {
			expense, alert, err := pipe.Expenses.Commit(ctx, userID, draft)
			if err != nil {
				return fmt.Errorf("save %s: %w", draft.Merchant, err)
			}
			observability.CLILogger.Info("Saved expense",
				zap.String("id", expense.ID),
				zap.String("merchant", expense.Merchant))
			if alert != nil {
				observability.CLILogger.Warn(alert.Message)
			}
		}
	}

	return writeReport(cmd, "extract", output.DraftReport(drafts))
}

// describeExtractError turns pipeline errors into operator-facing messages.
func describeExtractError(err error) error {
	var quotaErr *engine.QuotaExceededError
	if errors.As(err, &quotaErr) {
		return fmt.Errorf("daily limit reached (%d/%d); try again in %d hours", quotaErr.Used, quotaErr.Limit, quotaErr.HoursUntilReset())
	}
	var dimErr *imagecheck.DimensionError
	if errors.As(err, &dimErr) {
		return fmt.Errorf("image rejected: %w", dimErr)
	}
	var extractErr *engine.ExtractionError
	if errors.As(err, &extractErr) {
		return fmt.Errorf("extraction via %s failed: %w", extractErr.Provider, extractErr.Err)
	}
	return err
}
