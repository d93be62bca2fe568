// Package tools implements the tools command, a standalone preflight check
// for the external extraction tools.
package tools

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/jonesrussell/goload/internal/convert"
)

// renderToolchain displays the resolved tools in a table format.
func renderToolchain(tc *convert.Toolchain) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Tool", "Path"})
	for _, rt := range tc.Resolved() {
		t.AppendRow(table.Row{rt.Name, rt.Path})
	}

	t.Render()
}

// Command returns the tools command for use in the root command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Verify the mdbtools extraction programs are installed",
		RunE: func(cmd *cobra.Command, args []string) error {
			tc, err := convert.ResolveToolchain()
			if err != nil {
				return err
			}
			renderToolchain(tc)
			return nil
		},
	}
}
