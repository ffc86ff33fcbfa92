package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/spf13/cobra"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Maintain content status used by sys_filterByPublishableFlag",
}

var contentSetFlagCmd = &cobra.Command{
	Use:   "set-flag CONTENT_ID FLAG",
	Short: "Set the publishable flag of a content id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("content id %q: %w", args[0], err)
		}
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

		return db.NewContentStatusStore(queries).SetPublishableFlag(ctx, id, args[1])
	},
}

func init() {
	rootCmd.AddCommand(contentCmd)
	contentCmd.AddCommand(contentSetFlagCmd)
}

// noStatus answers every lookup with no known content.
type noStatus struct{}

func (noStatus) PublishableFlags(context.Context, []int64) (map[int64]string, error) {
	return map[int64]string{}, nil
}
