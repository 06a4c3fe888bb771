package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/a3tai/contract-guardian/internal/logger"
)

// NewRootCmd creates the root command for contractscan.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contractscan",
		Short: "Flag risky clauses in contracts",
		Long: `contractscan reads a contract (PDF, scanned image, or text file), recovers its
text, and flags clauses that match a catalog of creator-contract risk patterns:
perpetual rights, exclusivity, arbitration, indemnification, payment terms, and more.

Scanned PDFs need pdftoppm and tesseract on PATH. Set OPENAI_API_KEY to add a
narrative assessment from an OpenAI-compatible model.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger.Init(&logger.Config{Level: level, Format: "text", Output: cmd.ErrOrStderr()})
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("rules", "r", "", "YAML file of extra rules appended to the built-in catalog")

	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewRulesCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
