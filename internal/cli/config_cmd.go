package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/keyval/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage keyval config files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init PATH",
		Short: "Write an example config (.json, .yaml or .yml)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[0])
			return nil
		},
	})
	return cmd
}
