package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fdg312/meal-hub/internal/catalog"
	"github.com/fdg312/meal-hub/internal/storage"
)

var seedCmd = &cobra.Command{
	Use:   "seed <catalog.toml>",
	Short: "Load a TOML dish catalog into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := runSeed(cmd, st, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d ingredients, %d dishes from %s\n",
			len(snap.Ingredients), len(snap.Dishes), args[0])
		return nil
	},
}

func runSeed(cmd *cobra.Command, st storage.Storage, path string) (*catalog.Snapshot, error) {
	snap, err := catalog.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := catalog.Apply(cmd.Context(), st.GetCatalogStorage(), snap); err != nil {
		return nil, fmt.Errorf("apply catalog: %w", err)
	}
	return snap, nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
