package main

import (
	"encoding/json"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/a3tai/contract-guardian/internal/rules"
)

// NewRulesCmd creates the rules command.
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rule catalog",
		Long: `List every rule the analyzer checks, in catalog order, with its severity,
explanation, and negotiation guidance. Rules from --rules are listed after the
built-in ones.`,
		Args: cobra.NoArgs,
		RunE: runRulesCmd,
	}
	cmd.Flags().BoolP("json", "j", false, "Output rules in JSON format")
	return cmd
}

type ruleView struct {
	Category    string         `json:"category"`
	Severity    rules.Severity `json:"severity"`
	Pattern     string         `json:"pattern"`
	Explanation string         `json:"explanation"`
	Guidance    string         `json:"guidance"`
}

// runRulesCmd executes the rules command.
func runRulesCmd(cmd *cobra.Command, _ []string) error {
	rulesFile, _ := cmd.Flags().GetString("rules")
	asJSON, _ := cmd.Flags().GetBool("json")

	catalog, err := rules.Build(rulesFile)
	if err != nil {
		return err
	}

	views := make([]ruleView, 0, catalog.Len())
	for _, r := range catalog.Rules() {
		views = append(views, ruleView{
			Category:    r.Category,
			Severity:    r.Severity,
			Pattern:     r.Source,
			Explanation: r.Explanation,
			Guidance:    r.Guidance,
		})
	}

	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	}

	rows := make([][]string, len(views))
	for i, v := range views {
		rows[i] = []string{v.Category, string(v.Severity), v.Explanation}
	}
	md := markdown.NewMarkdown(cmd.OutOrStdout())
	md.H1("Contract Risk Rules")
	md.PlainText("")
	md.PlainTextf("%d rules across %d categories.", catalog.Len(), len(catalog.Categories()))
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Category", "Severity", "Why it matters"},
		Rows:   rows,
	})
	return md.Build()
}
