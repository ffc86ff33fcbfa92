package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List registered rules and their priorities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		// A placeholder lookup registers the publishable flag rule too.
		_, reg, err := e.newCatalog(noStatus{})
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RULE\tPRIORITY")
		for _, name := range reg.Names() {
			rule, err := reg.Resolve(name)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s\t%d\n", name, rule.Priority())
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}
