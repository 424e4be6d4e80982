package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fdg312/meal-hub/internal/shoppinglist"
	"github.com/fdg312/meal-hub/internal/storage"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Rebuild generated shopping items from the user's meal plan",
	Long: `Deletes every generated shopping item of the user and re-derives them from
the scheduled meals and the current dish catalog. Manual items are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUserFlag()
		if err != nil {
			return err
		}

		st, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		resp, err := newListService(st).Reconcile(cmd.Context(), user)
		if err != nil {
			return fmt.Errorf("reconcile %s: %w", user, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user=%s removed=%d inserted=%d\n", user, resp.Removed, resp.Inserted)
		return nil
	},
}

func newListService(st storage.Storage) *shoppinglist.Service {
	return shoppinglist.NewService(
		st.GetShoppingItemsStorage(),
		st.GetMealPlansStorage(),
		st.GetCatalogStorage(),
		shoppinglist.Options{},
	)
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
