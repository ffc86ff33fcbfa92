package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/solatis/itemfilter/internal/definitions"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Create or merge filters from a YAML definition file",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write stored filters as a YAML definition document",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
	importCmd.Flags().Bool("dry-run", false, "validate without saving")
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

func runImport(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx := cmd.Context()
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	incoming, err := definitions.Load(args[0])
	if err != nil {
		return err
	}

	database, queries, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	store := db.NewFilterStore(database, queries)
	catalog, _, err := e.newCatalog(db.NewContentStatusStore(queries))
	if err != nil {
		return err
	}
	stored, err := store.LoadAll(ctx)
	if err != nil {
		return err
	}
	if err := catalog.Replace(stored); err != nil {
		return err
	}

	// Merge into existing filters so rule definition IDs survive, then
	// validate the whole resulting set before writing anything.
	merged := make([]*filter.Filter, 0, len(incoming))
	for _, f := range incoming {
		target, err := catalog.Get(f.Name())
		switch {
		case errors.Is(err, types.ErrFilterNotFound):
			target = f
		case err != nil:
			return err
		default:
			target.Merge(f)
		}
		if err := catalog.Put(target); err != nil {
			return err
		}
		merged = append(merged, target)
	}
	for _, f := range merged {
		if _, err := catalog.Compile(f.Name()); err != nil {
			return fmt.Errorf("filter %s: %w", f.Name(), err)
		}
	}
	if dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d filter(s) valid\n", len(merged))
		return nil
	}

	for _, f := range merged {
		if err := store.Save(ctx, f); err != nil {
			return fmt.Errorf("save %s: %w", f.Name(), err)
		}
		e.logger.Info("filter imported", zap.String("filter", f.Name()), zap.Int("version", f.Version))
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	database, queries, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	filters, err := db.NewFilterStore(database, queries).LoadAll(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	return definitions.Encode(out, filters)
}
