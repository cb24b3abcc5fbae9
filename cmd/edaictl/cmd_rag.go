package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var ragCmd = &cobra.Command{
	Use:   "rag",
	Short: "Inspect the reference document index",
}

var ragQueryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Print the reference passages retrieved for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRAGQuery,
}

func init() {
	ragCmd.AddCommand(ragQueryCmd)
}

func runRAGQuery(cmd *cobra.Command, args []string) error {
	app, err := newApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.Reference().Load(cmd.Context()); err != nil {
		return fmt.Errorf("load reference document: %w", err)
	}
	out := app.Reference().Retrieve(cmd.Context(), strings.Join(args, " "))
	if out == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching passages.")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
