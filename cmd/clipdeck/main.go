// Package main - точка входа ClipDeck.
//
// Бинарник объединяет две команды:
//   - serve   - HTTP API поверх выбранного хранилища (memory или postgres)
//   - migrate - управление схемой PostgreSQL (up, down, status)
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version переопределяется при сборке через -ldflags "-X main.version=...".
var version = "dev"

// ══════════════════════════════════════════════════════════════════════════════
// ROOT COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// rootOptions - флаги, общие для всех команд.
type rootOptions struct {
	envFiles []string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "clipdeck",
		Short: "ClipDeck video sharing backend",
		Long: `ClipDeck serves channels, videos, posts, playlists, comments,
likes and subscriptions over a JSON API.

Configuration comes from the environment and an optional .env file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files to load before the environment")

	root.AddCommand(
		newServeCommand(opts),
		newMigrateCommand(opts),
	)
	return root
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	// Корневой контекст отменяется по SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
