package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/sessionstore"
	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect and manage persisted sessions",
}

var sessionLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List sessions, most recently updated first",
	RunE:  runSessionLs,
}

var sessionRmCmd = &cobra.Command{
	Use:   "rm <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionRm,
}

func init() {
	sessionCmd.AddCommand(sessionLsCmd)
	sessionCmd.AddCommand(sessionRmCmd)
}

func openSessionStore() (*sessionstore.Store, error) {
	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, err
	}
	return sessionstore.New(paths.StoragePath()), nil
}

func runSessionLs(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}

	summaries, err := store.List(context.Background())
	if err != nil {
		return err
	}
	for _, s := range summaries {
		updated := time.UnixMilli(s.Updated).Format("2006-01-02 15:04")
		fmt.Printf("%s\t%s\t%s\n", s.ID, updated, s.Title)
	}
	return nil
}

func runSessionRm(cmd *cobra.Command, args []string) error {
	store, err := openSessionStore()
	if err != nil {
		return err
	}
	return store.Delete(context.Background(), args[0])
}
