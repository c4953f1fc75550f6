package main

import (
	"fmt"

	"github.com/efebarandurmaz/qre/internal/hardware"
	"github.com/efebarandurmaz/qre/internal/program"
	"github.com/efebarandurmaz/qre/internal/server"
	"github.com/efebarandurmaz/qre/internal/tui"
	"github.com/spf13/cobra"
)

func newPresetsCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "presets",
		Short: "List qubit and QEC scheme presets and program compilers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := hardware.Default()
			compilers := program.DefaultRegistry().Names()
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), server.PresetsResponse{
					Qubits:     c.Qubits(),
					QecSchemes: c.Schemes(),
					Compilers:  compilers,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), tui.RenderPresets(c.Qubits(), c.Schemes(), compilers, tui.DefaultStyles()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output presets as JSON")

	return cmd
}
