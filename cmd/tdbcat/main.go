// Package main implements tdbcat, a tiny read-only inspection CLI over
// a tdbcore group file. It uses the cobra package for CLI plumbing and
// is built entirely on the public tdbcore API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scigolib/tdbcore"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tdbcat",
		Short: "Inspect a tdbcore group file",
	}

	rootCmd.AddCommand(tablesCmd())
	rootCmd.AddCommand(schemaCmd())
	rootCmd.AddCommand(statsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func tablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables <file>",
		Short: "List every table name in the group",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runTables(args[0])
		},
	}
}

func runTables(path string) error {
	g, err := tdbcore.OpenGroup(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = g.Close() }()

	names, err := g.TableNames()
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func schemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <file> <table>",
		Short: "Print a table's column names and types",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return runSchema(args[0], args[1])
		},
	}
}

func runSchema(path, tableName string) error {
	g, err := tdbcore.OpenGroup(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = g.Close() }()

	t, err := g.GetTable(tableName)
	if err != nil {
		return fmt.Errorf("loading table %q: %w", tableName, err)
	}

	for i := 0; i < t.ColumnCount(); i++ {
		fmt.Printf("%-24s %s\n", t.ColumnName(i), t.ColumnType(i))
	}
	return nil
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file>",
		Short: "Print per-table row counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runStats(args[0])
		},
	}
}

func runStats(path string) error {
	g, err := tdbcore.OpenGroup(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = g.Close() }()

	names, err := g.TableNames()
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}
	for _, name := range names {
		t, err := g.GetTable(name)
		if err != nil {
			return fmt.Errorf("loading table %q: %w", name, err)
		}
		fmt.Printf("%-24s %8d rows  %2d columns\n", name, t.Size(), t.ColumnCount())
	}
	return nil
}
