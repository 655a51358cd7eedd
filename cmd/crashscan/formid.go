package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/crashscan/crashscan-go/internal/formiddb"
	"github.com/crashscan/crashscan-go/pkg/crashscan/analyzers"
)

func newFormIDCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "formid",
		Short: "Manage the FormID database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "import <dump-file>...",
		Short: "Import FormID dumps into the database",
		Long: `Import "plugin | formid | entry" dump files into the FormID database
named by --formid-db. The database is created if it does not exist and
existing entries are replaced.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFormIDImport(cmd.Context(), cmd.OutOrStdout(), args)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "lookup <plugin> <formid>",
		Short: "Print the description of a FormID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFormIDLookup(cmd.Context(), cmd.OutOrStdout(), args[0], args[1])
		},
	})
	return cmd
}

var errNoFormIDDB = errors.New("no FormID database: set --formid-db")

func (a *app) openFormIDDB() (*formiddb.DB, error) {
	if a.cfg.FormIDDB == "" {
		return nil, errNoFormIDDB
	}
	return formiddb.New(a.cfg.FormIDDB, formiddb.WithLogger(a.logger)), nil
}

func (a *app) runFormIDImport(ctx context.Context, out io.Writer, paths []string) error {
	db, err := a.openFormIDDB()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, p := range paths {
		stats, err := importDump(ctx, db, p)
		if err != nil {
			return fmt.Errorf("import %s: %w", p, err)
		}
		fmt.Fprintf(out, "%s: imported %d, skipped %d\n", p, stats.Imported, stats.Skipped)
	}
	return nil
}

func importDump(ctx context.Context, db *formiddb.DB, path string) (formiddb.ImportStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return formiddb.ImportStats{}, err
	}
	defer f.Close()
	return db.Import(ctx, f)
}

func (a *app) runFormIDLookup(ctx context.Context, out io.Writer, plugin, formID string) error {
	db, err := a.openFormIDDB()
	if err != nil {
		return err
	}
	defer db.Close()
	if !db.IsAvailable() {
		return fmt.Errorf("FormID database %s does not exist", a.cfg.FormIDDB)
	}

	entries, err := db.GetEntries(ctx, []analyzers.FormIDKey{{Plugin: plugin, FormID: formID}})
	if err != nil {
		return err
	}
	if len(entries) == 0 || entries[0] == nil {
		return fmt.Errorf("no entry for %s in %s", formiddb.NormalizeFormID(formID), plugin)
	}
	_, err = fmt.Fprintln(out, *entries[0])
	return err
}
