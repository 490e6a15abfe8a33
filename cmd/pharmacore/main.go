// Command pharmacore runs the pharmacy monitoring loop and the maintenance
// tasks around it: reports, manual notifications, CSV seeding and backups.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"pharmacore/internal/blob"
	"pharmacore/internal/config"
	"pharmacore/internal/core"
	"pharmacore/internal/kv"
	"pharmacore/internal/logging"
)

var exitFunc = os.Exit

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		exitFunc(1)
	}
}

// app carries what every subcommand needs once the root has parsed its flags.
type app struct {
	out    io.Writer
	logOut io.Writer
	cfg    config.Config
	logger logging.Adapter
}

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	a := &app{out: out, logOut: logOut}
	rootCmd := &cobra.Command{
		Use:          "pharmacore",
		Short:        "Pharmacy inventory, patient and prescription alerting engine",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(logOut)

	rootCmd.AddCommand(monitorCmd(a))
	rootCmd.AddCommand(statsCmd(a))
	rootCmd.AddCommand(healthCmd(a))
	rootCmd.AddCommand(reorderCmd(a))
	rootCmd.AddCommand(alertsCmd(a))
	rootCmd.AddCommand(resolveCmd(a))
	rootCmd.AddCommand(notifyCmd(a))
	rootCmd.AddCommand(seedCmd(a))
	rootCmd.AddCommand(backupCmd(a))
	rootCmd.AddCommand(restoreCmd(a))
	return rootCmd
}

func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zl, err := logging.New(cfg.LogLevel, cfg.LogFormat, a.logOut)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.NewAdapter(zl)
	return nil
}

// withStore opens the configured key-value store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(kv.Store) error) error {
	store, err := kv.Open(ctx, a.cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.logger.Warn("close store", "error", cerr)
		}
	}()
	return fn(store)
}

// withService loads the engines over the configured store.
func (a *app) withService(ctx context.Context, fn func(*core.Service, kv.Store) error, opts ...core.ServiceOption) error {
	return a.withStore(ctx, func(store kv.Store) error {
		base := []core.ServiceOption{
			core.WithLogger(a.logger),
			core.WithInactivityMonths(a.cfg.InactivityMonths),
		}
		svc, err := core.NewService(ctx, store, append(base, opts...)...)
		if err != nil {
			return err
		}
		return fn(svc, store)
	})
}

func (a *app) openBlobs(ctx context.Context) (blob.Store, error) {
	blobs, err := blob.Open(ctx, a.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	return blobs, nil
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
