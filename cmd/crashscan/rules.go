package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/crashscan/crashscan-go/pkg/crashscan/rules"
)

func newRulesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rule documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [rule-file...]",
		Short: "Validate rule documents",
		Long: `Validate rule documents and report rules that would be skipped.

Without arguments the active game's rule document is checked, as
resolved from --rules-dir and the built-in documents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRulesCheck(cmd.Context(), cmd.OutOrStdout(), args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Summarize the active game's rule set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runRulesShow(cmd.Context(), cmd.OutOrStdout())
		},
	})
	return cmd
}

// runRulesCheck compiles every document and lists skipped rules.
// It fails when any document cannot be loaded.
func (a *app) runRulesCheck(ctx context.Context, out io.Writer, paths []string) error {
	type checked struct {
		name string
		doc  *rules.Document
		err  error
	}

	var docs []checked
	if len(paths) == 0 {
		doc, err := a.readActiveDocument(ctx)
		docs = append(docs, checked{name: a.game(), doc: doc, err: err})
	}
	for _, p := range paths {
		doc, err := rules.Load(p)
		docs = append(docs, checked{name: p, doc: doc, err: err})
	}

	invalid := 0
	for _, c := range docs {
		if c.err != nil {
			invalid++
			fmt.Fprintf(out, "%s: invalid: %v\n", c.name, c.err)
			continue
		}
		rs := rules.Compile(c.name, c.doc)
		fmt.Fprintf(out, "%s: %d rules, %d skipped\n", c.name, rs.Count(), len(rs.Skipped))
		for _, ke := range rs.Skipped {
			fmt.Fprintf(out, "  %v\n", ke)
		}
	}
	if invalid > 0 {
		return fmt.Errorf("%d of %d rule documents are invalid", invalid, len(docs))
	}
	return nil
}

func (a *app) readActiveDocument(ctx context.Context) (*rules.Document, error) {
	data, err := a.ruleSource().ReadRules(ctx, a.game())
	if err != nil {
		return nil, err
	}
	return rules.LoadBytes(data)
}

// runRulesShow prints the number of rules per section of the active rule set.
func (a *app) runRulesShow(ctx context.Context, out io.Writer) error {
	store := rules.NewStore(a.ruleSource(), rules.WithLogger(a.logger))
	rs, err := store.Load(ctx, a.game())
	if err != nil {
		var lw *rules.LoadWarning
		if !errors.As(err, &lw) {
			return err
		}
		return fmt.Errorf("rule set %q could not be loaded: %w", a.game(), lw.Err)
	}

	rows := [][]string{
		{"error signatures", "", strconv.Itoa(len(rs.Signatures))},
		{"stack patterns", "", strconv.Itoa(len(rs.StackPatterns))},
	}
	for _, c := range rs.ModWarnings {
		rows = append(rows, []string{"mod warnings", c.Name, strconv.Itoa(len(c.Rules))})
	}
	rows = append(rows, []string{"mod conflicts", "", strconv.Itoa(len(rs.ModConflicts))})
	for _, c := range rs.ImportantMods {
		rows = append(rows, []string{"important mods", c.Name, strconv.Itoa(len(c.Rules))})
	}
	rows = append(rows,
		[]string{"ignored plugins", "", strconv.Itoa(len(rs.IgnorePlugins))},
		[]string{"records", "", strconv.Itoa(len(rs.Records))},
		[]string{"records exclude", "", strconv.Itoa(len(rs.RecordsExclude))},
		[]string{"dll allow list", "", strconv.Itoa(len(rs.DLLAllowList))},
		[]string{"fcx files", "", strconv.Itoa(len(rs.FCXFiles))},
	)

	fmt.Fprintf(out, "Rule set %s: %d rules, %d skipped\n", rs.Name, rs.Count(), len(rs.Skipped))
	table := tablewriter.NewWriter(out)
	table.Header([]string{"Section", "Category", "Rules"})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}
