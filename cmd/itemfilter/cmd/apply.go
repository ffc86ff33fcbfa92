package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/solatis/itemfilter/internal/core/api"
	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/solatis/itemfilter/internal/definitions"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/types"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply FILTER",
	Short: "Run items through a filter and print the survivors as JSON",
	Long: `Run items through a filter locally.

Items come from --item (GUID only) and --items (JSON array of
{"item_id","folder_id","site_id","attributes"} objects, "-" for stdin).
Filters are read from the database unless --definitions names a YAML file.`,
	Args: cobra.ExactArgs(1),
	RunE: runApply,
}

var explainCmd = &cobra.Command{
	Use:   "explain FILTER",
	Short: "Print a filter's compiled rule chain in execution order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, closeFn, err := loadCatalog(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		chain, err := catalog.Compile(args[0])
		if err != nil {
			return err
		}
		for _, r := range chain.Rules() {
			fmt.Fprintln(cmd.OutOrStdout(), r)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(explainCmd)
	for _, c := range []*cobra.Command{applyCmd, explainCmd} {
		c.Flags().String("definitions", "", "YAML definition file to use instead of the database")
	}
	applyCmd.Flags().StringArray("item", nil, "item GUID (repeatable)")
	applyCmd.Flags().String("items", "", "JSON file of items, - for stdin")
	applyCmd.Flags().StringToString("param", nil, "caller parameter key=value (repeatable)")
}

func runApply(cmd *cobra.Command, args []string) error {
	ids, _ := cmd.Flags().GetStringArray("item")
	itemsFile, _ := cmd.Flags().GetString("items")
	params, _ := cmd.Flags().GetStringToString("param")

	wire := make([]api.Item, 0, len(ids))
	for _, id := range ids {
		wire = append(wire, api.Item{ItemID: strings.TrimSpace(id)})
	}
	if itemsFile != "" {
		more, err := readItems(cmd, itemsFile)
		if err != nil {
			return err
		}
		wire = append(wire, more...)
	}

	items, err := api.ToItems(wire, types.GUIDResolver{})
	if err != nil {
		return err
	}

	catalog, closeFn, err := loadCatalog(cmd)
	if err != nil {
		return err
	}
	defer closeFn()

	out, err := catalog.Apply(cmd.Context(), args[0], items, types.Params(params))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(api.FromItems(out))
}

func readItems(cmd *cobra.Command, path string) ([]api.Item, error) {
	r := cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var items []api.Item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

// loadCatalog fills a catalog from --definitions or the database. The
// returned func releases the database when one was opened.
func loadCatalog(cmd *cobra.Command) (*filter.Catalog, func(), error) {
	e, err := setup(cmd)
	if err != nil {
		return nil, nil, err
	}

	if path, _ := cmd.Flags().GetString("definitions"); path != "" {
		filters, err := definitions.Load(path)
		if err != nil {
			return nil, nil, err
		}
		catalog, _, err := e.newCatalog(nil)
		if err != nil {
			return nil, nil, err
		}
		if err := catalog.Replace(filters); err != nil {
			return nil, nil, err
		}
		return catalog, func() {}, nil
	}

	ctx := cmd.Context()
	database, queries, err := e.openDB(ctx)
	if err != nil {
		return nil, nil, err
	}
	catalog, _, err := e.newCatalog(db.NewContentStatusStore(queries))
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	filters, err := db.NewFilterStore(database, queries).LoadAll(ctx)
	if err == nil {
		err = catalog.Replace(filters)
	}
	if err != nil {
		database.Close()
		return nil, nil, err
	}
	return catalog, func() { database.Close() }, nil
}
