package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/keyval/internal/keyval"
	"github.com/SmitUplenchwar2687/keyval/internal/storage"
)

func newPutCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "put KEY VALUE",
		Short: "Store a value (use - to read VALUE from stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl < 0 {
				return fmt.Errorf("--ttl must not be negative, got %s", ttl)
			}

			value := []byte(args[1])
			if args[1] == "-" {
				b, err := io.ReadAll(opts.in)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				value = b
			}

			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx := cmd.Context()
			if ttl == 0 {
				return keyval.New(e.store, keyval.StringKey(), keyval.Bytes()).Insert(ctx, args[0], value)
			}

			kv, err := ttlFacade(e)
			if err != nil {
				return err
			}
			return kv.InsertFor(ctx, args[0], value, ttl)
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "expire the entry after this duration (0 = never)")
	return cmd
}

func newGetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get KEY",
		Short: "Print a value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			kv := keyval.New(e.store, keyval.StringKey(), keyval.Bytes())
			value, err := kv.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("get %q: %w", args[0], err)
			}
			_, err = opts.out.Write(value)
			return err
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm KEY",
		Aliases: []string{"remove", "del"},
		Short:   "Remove a key (no error if absent)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			return keyval.New(e.store, keyval.StringKey(), keyval.Bytes()).Remove(cmd.Context(), args[0])
		},
	}
}

func newTouchCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "touch KEY",
		Short: "Reset a key's expiry (--ttl 0 clears it)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("ttl") {
				return fmt.Errorf("--ttl is required")
			}
			if ttl < 0 {
				return fmt.Errorf("--ttl must not be negative, got %s", ttl)
			}

			e, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			kv, err := ttlFacade(e)
			if err != nil {
				return err
			}

			var expiry time.Time
			if ttl > 0 {
				expiry = e.clock.Now().Add(ttl)
			}
			if err := kv.Touch(cmd.Context(), args[0], expiry); err != nil {
				return fmt.Errorf("touch %q: %w", args[0], err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 0, "new lifetime measured from now (0 = never expire)")
	return cmd
}

func ttlFacade(e *env) (*keyval.TTLKeyVal[string, []byte], error) {
	ts, ok := e.store.(storage.TTLStore)
	if !ok {
		return nil, fmt.Errorf("backend %q does not support TTLs (enable --ttl-overlay)", storage.BackendName(e.store))
	}
	return keyval.NewTTL(ts, e.clock, keyval.StringKey(), keyval.Bytes()), nil
}
