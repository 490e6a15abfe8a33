package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"pharmacore/internal/core"
	"pharmacore/internal/kv"
	"pharmacore/internal/seed"
	"pharmacore/pkg/domain"
)

func monitorCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run automated monitoring on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			once, _ := cmd.Flags().GetBool("once")
			interval, _ := cmd.Flags().GetDuration("interval")
			addr, _ := cmd.Flags().GetString("metrics-addr")
			if interval <= 0 {
				interval = a.cfg.MonitorInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
			recorder, err := core.NewPrometheusRecorder(reg)
			if err != nil {
				return fmt.Errorf("register metrics: %w", err)
			}

			return a.withService(ctx, func(svc *core.Service, _ kv.Store) error {
				if once {
					report, err := svc.Tick(ctx)
					if err != nil {
						return err
					}
					return a.printJSON(report)
				}
				if addr != "" {
					srv := &http.Server{
						Addr:              addr,
						Handler:           metricsMux(reg),
						ReadHeaderTimeout: 5 * time.Second,
					}
					go func() {
						a.logger.Info("metrics listening", "addr", addr)
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							a.logger.Error("metrics server failed", "error", err)
						}
					}()
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						defer cancel()
						_ = srv.Shutdown(shutdownCtx)
					}()
				}
				a.logger.Info("monitor started", "interval", interval.String())
				err := svc.Run(ctx, interval, func(r core.TickReport) {
					a.logger.Info("monitor tick",
						"inventory_checked", r.Inventory.Checked,
						"patients_checked", r.Patients.Checked,
						"prescriptions_checked", r.Prescriptions.Checked,
						"unresolved", r.Unresolved)
				})
				if errors.Is(err, context.Canceled) {
					a.logger.Info("monitor stopped")
					return nil
				}
				return err
			}, core.WithMetricsRecorder(recorder))
		},
	}
	cmd.Flags().Bool("once", false, "run a single monitoring pass and print its report")
	cmd.Flags().Duration("interval", 0, "time between passes (defaults to PHARMACORE_MONITOR_INTERVAL)")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func metricsMux(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

func statsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print inventory statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ kv.Store) error {
				return a.printJSON(svc.Inventory().GetStats())
			})
		},
	}
}

func healthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Print the inventory health report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ kv.Store) error {
				return a.printJSON(svc.Inventory().RunHealthCheck())
			})
		},
	}
}

func reorderCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder",
		Short: "List reorder suggestions, most pressing first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd.Context(), func(svc *core.Service, _ kv.Store) error {
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PRIORITY\tITEM\tSTOCK\tMIN\tQTY\tSUPPLIER\tCOST")
				for _, s := range svc.Inventory().ReorderSuggestions() {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
						s.Priority, s.ItemName, s.CurrentStock, s.MinimumStock, s.SuggestedQuantity, s.Supplier, s.EstimatedCost.StringFixed(2))
				}
				return tw.Flush()
			})
		},
	}
}

type alertListing struct {
	Inventory     []domain.InventoryAlert    `json:"inventory"`
	Patient       []domain.PatientAlert      `json:"patient"`
	Prescription  []domain.PrescriptionAlert `json:"prescription"`
	Notifications []domain.Notification      `json:"notifications,omitempty"`
}

func alertsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Print unresolved alerts from every engine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			all, _ := cmd.Flags().GetBool("all")
			withNotes, _ := cmd.Flags().GetBool("notifications")
			return a.withService(cmd.Context(), func(svc *core.Service, _ kv.Store) error {
				out := alertListing{
					Inventory:    svc.Inventory().GetAlerts(core.AlertFilter{UnresolvedOnly: !all}),
					Patient:      svc.Patients().GetAlerts(core.PatientAlertFilter{UnresolvedOnly: !all}),
					Prescription: svc.Prescriptions().GetAlerts(core.PrescriptionAlertFilter{UnresolvedOnly: !all}),
				}
				if withNotes {
					out.Notifications = svc.Notifications().GetNotifications(core.NotificationFilter{UnreadOnly: !all, IncludeArchived: all})
				}
				return a.printJSON(out)
			})
		},
	}
	cmd.Flags().Bool("all", false, "include resolved alerts")
	cmd.Flags().Bool("notifications", false, "also list notifications (unread only unless --all)")
	return cmd
}

func notifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <TEMPLATE> [key=value...]",
		Short: "Create a notification from a named template",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseFields(args[1:])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(svc *core.Service, _ kv.Store) error {
				note, err := svc.Notifications().CreateFromTemplate(cmd.Context(), args[0], data, nil)
				if err != nil {
					return err
				}
				return a.printJSON(note)
			})
		},
	}
}

func parseFields(args []string) (map[string]any, error) {
	data := make(map[string]any, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		data[key] = value
	}
	return data, nil
}

func seedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <csv>",
		Short: "Import inventory items from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actor, _ := cmd.Flags().GetString("actor")
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer func() { _ = f.Close() }()
			return a.withService(cmd.Context(), func(svc *core.Service, _ kv.Store) error {
				res, err := seed.LoadInventory(cmd.Context(), svc.Inventory(), f, actor, a.logger)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "added %d items, skipped %d rows\n", res.Added, len(res.Skipped))
				for _, skip := range res.Skipped {
					fmt.Fprintf(a.out, "  line %d: %v\n", skip.Line, skip.Err)
				}
				return nil
			})
		},
	}
	cmd.Flags().String("actor", "seed", "recorded as the creator of imported items")
	return cmd
}

func backupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the store to blob storage and prune old snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			blobs, err := a.openBlobs(ctx)
			if err != nil {
				return err
			}
			return a.withService(ctx, func(svc *core.Service, store kv.Store) error {
				info, err := kv.Backup(ctx, store, blobs, time.Now().UTC(), svc.StorageKeys()...)
				if err != nil {
					return fmt.Errorf("backup: %w", err)
				}
				pruned, err := kv.PruneBackups(ctx, blobs, a.cfg.BackupRetain)
				if err != nil {
					return fmt.Errorf("prune backups: %w", err)
				}
				a.logger.Info("backup written", "key", info.Key, "size", info.Size, "pruned", len(pruned))
				fmt.Fprintln(a.out, info.Key)
				return nil
			})
		},
	}
}

func restoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore [key]",
		Short: "Replace the store with a snapshot, the latest one by default",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			blobs, err := a.openBlobs(ctx)
			if err != nil {
				return err
			}
			return a.withStore(ctx, func(store kv.Store) error {
				n, err := kv.Restore(ctx, store, blobs, key)
				if err != nil {
					return fmt.Errorf("restore: %w", err)
				}
				fmt.Fprintf(a.out, "restored %d keys\n", n)
				return nil
			})
		},
	}
}

func resolveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve an inventory, patient or prescription alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, _ := cmd.Flags().GetString("engine")
			actor, _ := cmd.Flags().GetString("actor")
			ctx := cmd.Context()
			return a.withService(ctx, func(svc *core.Service, _ kv.Store) error {
				var (
					ok  bool
					err error
				)
				switch engine {
				case "inventory":
					ok, err = svc.Inventory().ResolveAlert(ctx, args[0], actor)
				case "patient":
					ok, err = svc.Patients().ResolveAlert(ctx, args[0], actor)
				case "prescription":
					ok, err = svc.Prescriptions().ResolveAlert(ctx, args[0], actor)
				default:
					return fmt.Errorf("unknown engine %q (want inventory, patient or prescription)", engine)
				}
				if err != nil {
					return err
				}
				if !ok {
					return domain.ErrNotFound{Entity: domain.EntityAlert, ID: args[0]}
				}
				fmt.Fprintf(a.out, "resolved %s\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().String("engine", "inventory", "engine owning the alert: inventory, patient or prescription")
	cmd.Flags().String("actor", "cli", "recorded as the resolver")
	return cmd
}
