package cli

import (
	"io"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	storage    storageOptions

	// in and out are swapped in tests.
	in  io.Reader
	out io.Writer
}

// NewRootCmd creates the root keyval command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{storage: defaultStorageOptions()}

	root := &cobra.Command{
		Use:   "keyval",
		Short: "Backend-agnostic key/value store with optional TTLs",
		Long: `keyval reads and writes keys in a memory, bolt or redis backend.
Wrap any backend in the TTL overlay (--ttl-overlay) to give entries an expiry.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.in == nil {
				opts.in = cmd.InOrStdin()
			}
			if opts.out == nil {
				opts.out = cmd.OutOrStdout()
			}
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a JSON or YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format (text, json)")
	opts.storage.addFlags(root)

	root.AddCommand(
		newPutCmd(opts),
		newGetCmd(opts),
		newRemoveCmd(opts),
		newTouchCmd(opts),
		newServeCmd(opts),
		newConfigCmd(),
	)

	return root
}
