package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/damienmail/damien-mcp-server/internal/adapter"
	"github.com/damienmail/damien-mcp-server/internal/gmail"
	"github.com/damienmail/damien-mcp-server/internal/google"
	"github.com/damienmail/damien-mcp-server/internal/logging"
	"github.com/damienmail/damien-mcp-server/internal/rules"
)

func newApplyCmd() *cobra.Command {
	var (
		debugMode       bool
		query           string
		ruleIDs         []string
		dryRun          bool
		scanLimit       int
		dateAfter       string
		dateBefore      string
		allMail         bool
		rulesFile       string
		credentialsPath string
		tokenPath       string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply filtering rules to the mailbox",
		Long: `Scan the mailbox and apply the configured filtering rules without
starting a server. By default all enabled rules run against recent mail;
use --dry-run to see what would happen without touching any messages.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger := logging.Setup(debugMode)

			if rulesFile == "" {
				rulesFile = os.Getenv("DAMIEN_RULES_FILE")
			}
			if rulesFile == "" {
				rulesFile = filepath.Join(homeDir(), ".damien", "rules.json")
			}

			provider := gmail.NewProvider(google.Config{
				CredentialsPath: credentialsPath,
				TokenPath:       tokenPath,
			})
			backend := adapter.New(provider, rules.NewStore(rulesFile), logger, nil)

			summary, err := backend.ApplyRules(ctx, adapter.ApplyParams{
				Query:      query,
				RuleIDs:    ruleIDs,
				DryRun:     dryRun,
				ScanLimit:  scanLimit,
				DateAfter:  dateAfter,
				DateBefore: dateBefore,
				AllMail:    allMail,
			})
			if err != nil {
				return fmt.Errorf("failed to apply rules: %w", err)
			}

			out, err := json.MarshalIndent(summary, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode summary: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&query, "query", "", "Gmail search query to scope the scan (e.g., 'in:inbox')")
	cmd.Flags().StringSliceVar(&ruleIDs, "rule-ids", nil, "Restrict to specific rules by id or name (comma-separated). Default: all enabled rules.")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would happen without modifying any messages")
	cmd.Flags().IntVar(&scanLimit, "scan-limit", 0, "Maximum number of messages to scan (default: 100)")
	cmd.Flags().StringVar(&dateAfter, "date-after", "", "Only scan messages after this date (YYYY/MM/DD)")
	cmd.Flags().StringVar(&dateBefore, "date-before", "", "Only scan messages before this date (YYYY/MM/DD)")
	cmd.Flags().BoolVar(&allMail, "all-mail", false, "Scan all mail instead of a scoped query")
	cmd.Flags().StringVar(&rulesFile, "rules-file", "", "Path to the rules JSON file. Can also use DAMIEN_RULES_FILE env var. Default: ~/.damien/rules.json")
	cmd.Flags().StringVar(&credentialsPath, "gmail-credentials", "", "Path to Gmail OAuth client credentials JSON. Can also use DAMIEN_GMAIL_CREDENTIALS_PATH env var.")
	cmd.Flags().StringVar(&tokenPath, "gmail-token", "", "Path to the stored Gmail OAuth token JSON. Can also use DAMIEN_GMAIL_TOKEN_PATH env var.")

	return cmd
}
