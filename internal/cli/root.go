package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"boulder-catalog/internal/client"
	"boulder-catalog/internal/config"
	"boulder-catalog/internal/mirror"
	"boulder-catalog/internal/store"
)

// Opener builds a loaded store and returns a function that releases it.
type Opener func(ctx context.Context) (*store.Store, func() error, error)

// DefaultOpener wires the API client and the SQLite mirror from cfg.
// Store logs go to logOut.
func DefaultOpener(cfg *config.Config, logOut io.Writer) Opener {
	return func(ctx context.Context) (*store.Store, func() error, error) {
		storage, err := mirror.OpenSQLiteStorage(cfg.Client.MirrorPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local mirror: %w", err)
		}

		remote := client.NewAPIClient(cfg.Client.APIURL, client.Style(cfg.Client.APIStyle), cfg.Client.Timeout)
		s := store.New(ctx, remote, mirror.New(storage), store.WithLogger(log.New(logOut, "", log.LstdFlags)))

		release := func() error {
			s.Close()
			return storage.Close()
		}
		return s, release, nil
	}
}

func NewRootCmd(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "boulder",
		Short: "Manage bouldering problems",
		Long: `boulder lists and edits the problems of the catalog API.
When the API cannot be reached, changes are kept in a local mirror.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(listCmd(open))
	rootCmd.AddCommand(showCmd(open))
	rootCmd.AddCommand(addCmd(open))
	rootCmd.AddCommand(updateCmd(open))
	rootCmd.AddCommand(deleteCmd(open))
	rootCmd.AddCommand(nextIDCmd(open))
	rootCmd.AddCommand(HoldsCmd())

	return rootCmd
}

// withStore opens a store for the duration of fn.
func withStore(cmd *cobra.Command, open Opener, fn func(s *store.Store) error) error {
	s, release, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer release()

	return fn(s)
}

func warnIfDegraded(cmd *cobra.Command, outcome store.Outcome, s *store.Store) {
	if outcome != store.Degraded {
		return
	}
	warn(cmd, s.State().Error)
}

func warn(cmd *cobra.Command, msg string) {
	fmt.Fprintln(cmd.ErrOrStderr(), color.New(color.FgYellow).Sprintf("⚠ %s", msg))
}
