package main

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/five82/checklist/internal/app"
	"github.com/five82/checklist/internal/pagestate"
)

func newStateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the remembered page state",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "size",
			Short: "Print the encoded size of the saved state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withPages(cmd, func(pages *pagestate.Manager) error {
					size := pages.StateSize()
					fmt.Fprintf(cmd.OutOrStdout(), "%d bytes of %d (%d pages)\n",
						size, c.cfg.MaxStateBytes, len(pages.Snapshot()))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "show [page]",
			Short: "Print the saved state as JSON",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withPages(cmd, func(pages *pagestate.Manager) error {
					var v any = pages.Snapshot()
					if len(args) == 1 {
						ps := pages.GetPageState(args[0])
						if ps == nil {
							return fmt.Errorf("no state saved for %s", args[0])
						}
						v = ps
					}
					out, err := json.MarshalIndent(v, "", "  ")
					if err != nil {
						return fmt.Errorf("encode state: %w", err)
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(out))
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "pages",
			Short: "List the pages with saved state",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withPages(cmd, func(pages *pagestate.Manager) error {
					keys := pages.Snapshot().Keys()
					sort.Strings(keys)
					for _, k := range keys {
						fmt.Fprintln(cmd.OutOrStdout(), k)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "clear [page]",
			Short: "Forget one page's state, or everything",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.withPages(cmd, func(pages *pagestate.Manager) error {
					if len(args) == 1 {
						pages.ClearPageState(args[0])
						fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
					} else {
						pages.ClearAllStates()
						fmt.Fprintln(cmd.OutOrStdout(), "cleared all pages")
					}
					pages.Flush()
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "cleanup",
			Short: "Drop pages older than the configured max age",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withPages(cmd, func(pages *pagestate.Manager) error {
					n := pages.CleanupExpiredStates()
					pages.Flush()
					fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired pages\n", n)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "reset-flags",
			Short: "Close dialogs left open on every saved page",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withPages(cmd, func(pages *pagestate.Manager) error {
					n := pages.RepairedAtStart() + pages.ResetVisibilityFlags()
					fmt.Fprintf(cmd.OutOrStdout(), "closed flags on %d pages\n", n)
					return nil
				})
			},
		},
	)
	return cmd
}

// withPages runs fn against a started page-state manager and closes it,
// which writes any pending change, before returning.
func (c *cli) withPages(cmd *cobra.Command, fn func(*pagestate.Manager) error) error {
	pages, closePages, err := app.OpenManager(cmd.Context(), c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer closePages()
	return fn(pages)
}
