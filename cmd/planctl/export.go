package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fdg312/meal-hub/internal/exports"
	"github.com/fdg312/meal-hub/internal/shoppinglist"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render the user's shopping list as CSV or PDF",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := requireUserFlag()
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		out, _ := cmd.Flags().GetString("out")

		st, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := newListService(st).List(cmd.Context(), user)
		if err != nil {
			return fmt.Errorf("load shopping list: %w", err)
		}

		data, err := renderList(list, format)
		if err != nil {
			return err
		}

		if out == "" || out == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d items (%d bytes) to %s\n", list.Total, len(data), out)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the user's shopping list grouped by category",
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

		list, err := newListService(st).List(cmd.Context(), user)
		if err != nil {
			return fmt.Errorf("load shopping list: %w", err)
		}
		printList(cmd.OutOrStdout(), list)
		return nil
	},
}

func renderList(list *shoppinglist.ListResponse, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case exports.FormatCSV:
		return exports.RenderCSV(list)
	case exports.FormatPDF:
		return exports.RenderPDF(list, time.Now())
	default:
		return nil, fmt.Errorf("unsupported format %q (allowed: csv, pdf)", format)
	}
}

func printList(w io.Writer, list *shoppinglist.ListResponse) {
	for _, g := range list.Groups {
		fmt.Fprintf(w, "%s\n", g.Label)
		for _, it := range g.Items {
			mark := " "
			if it.Checked {
				mark = "x"
			}
			from := "manual"
			if it.DishName != nil {
				from = *it.DishName
			}
			fmt.Fprintf(w, "  [%s] %s %g %s (%s)\n", mark, it.Name, it.Quantity, it.Unit, from)
		}
	}
	fmt.Fprintf(w, "%d items\n", list.Total)
}

func init() {
	exportCmd.Flags().String("format", exports.FormatCSV, "export format: csv|pdf")
	exportCmd.Flags().StringP("out", "o", "", "output file (default stdout)")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(listCmd)
}
