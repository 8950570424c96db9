package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/seisio/stationsync"
	"github.com/seisio/stationsync/pkg/inventory"
	"github.com/seisio/stationsync/pkg/store"
)

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "stationsync",
		Short:         "Acquire and reconcile seismic station metadata",
		Long:          "stationsync fetches station and channel metadata from FDSN data centers,\nreconciles conflicting reports, and persists the result as a queryable inventory.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", a.version, a.commit, a.date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "config file (default ~/.stationsync.yaml)")
	root.PersistentFlags().StringVar(&a.config.DatabaseURL, "database-url", a.config.DatabaseURL, "Postgres DSN (empty selects an in-memory store)")
	root.PersistentFlags().StringVar(&a.config.ProvidersFile, "providers", a.config.ProvidersFile, "YAML provider registry path")

	root.AddCommand(a.acquireCommand())
	root.AddCommand(a.migrateCommand())
	return root
}

func (a *App) acquireCommand() *cobra.Command {
	var (
		networks  []string
		stations  []string
		locations []string
		channels  []string
		startArg  string
		endArg    string
		minRate   float64
		printRows bool
	)

	cmd := &cobra.Command{
		Use:   "acquire",
		Short: "Run one acquisition cycle",
		Long:  "Fetch channel metadata from every configured data center, reconcile\nconflicts, persist the result, and report the final channel set.\nPattern flags accept FDSN wildcards ('*', '?') and a leading '!' for negation.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			providers, err := inventory.LoadProviders(a.config.ProvidersFile)
			if err != nil {
				return err
			}

			repo, cleanup, err := a.repository(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			start, err := parseTimeFlag(startArg)
			if err != nil {
				return err
			}
			end, err := parseTimeFlag(endArg)
			if err != nil {
				return err
			}

			opts := []stationsync.Option{
				stationsync.WithRepository(repo),
				stationsync.WithWorkers(a.config.Workers),
				stationsync.WithRequestTimeout(a.config.RequestTimeout),
				stationsync.WithFetchTimeout(a.config.FetchTimeout),
				stationsync.WithBatchSize(a.config.BatchSize),
				stationsync.WithUpdateOnConflict(a.config.UpdateOnConflict),
				stationsync.WithProgress(func(completed, total int, p inventory.Provider, err error) {
					a.logger.Debug().
						Int("completed", completed).
						Int("total", total).
						Str("provider", p.Name).
						Err(err).
						Msg("Provider request finished")
				}),
			}
			if a.config.RoutingURL != "" {
				opts = append(opts, stationsync.WithRoutingOracle(a.config.RoutingURL))
			}
			client, err := stationsync.New(opts...)
			if err != nil {
				return err
			}

			result, err := client.Acquire(ctx, stationsync.Request{
				Providers:     providers,
				Networks:      networks,
				Stations:      stations,
				Locations:     locations,
				Channels:      channels,
				Start:         start,
				End:           end,
				MinSampleRate: minRate,
			})
			if err != nil {
				return err
			}

			a.logger.Info().
				Int("channels", len(result.Rows)).
				Int("failed_providers", len(result.Failed)).
				Int("recovered_from_store", result.RecoveredFromStore).
				Int("dropped_between_providers", result.DroppedBetweenProviders).
				Int("dropped_within_provider", result.DroppedWithinProvider).
				Msg("Acquisition cycle complete")

			if printRows {
				writeRows(cmd, result.Rows)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&networks, "networks", nil, "network patterns")
	cmd.Flags().StringSliceVar(&stations, "stations", nil, "station patterns")
	cmd.Flags().StringSliceVar(&locations, "locations", nil, "location patterns")
	cmd.Flags().StringSliceVar(&channels, "channels", nil, "channel patterns")
	cmd.Flags().StringVar(&startArg, "start", "", "epoch window start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&endArg, "end", "", "epoch window end (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().Float64Var(&minRate, "min-sample-rate", 0, "minimum channel sample rate in Hz")
	cmd.Flags().BoolVar(&printRows, "print", false, "print the final channel set to stdout")
	return cmd
}

func (a *App) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the inventory tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.config.DatabaseURL == "" {
				return fmt.Errorf("migrate requires --database-url")
			}
			pg, err := store.Connect(cmd.Context(), a.config.DatabaseURL)
			if err != nil {
				return err
			}
			defer pg.Close()
			return pg.Migrate(cmd.Context())
		},
	}
}

// repository selects the persistence backend from configuration. The
// in-memory store serves dry runs; it forgets everything at exit.
func (a *App) repository(cmd *cobra.Command) (store.Repository, func(), error) {
	if a.config.DatabaseURL == "" {
		a.logger.Warn().Msg("No database configured, using in-memory store")
		return store.NewMemory(), func() {}, nil
	}
	pg, err := store.Connect(cmd.Context(), a.config.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := pg.Migrate(cmd.Context()); err != nil {
		pg.Close()
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// writeRows prints the final channel set in the same pipe-delimited shape
// the providers use.
func writeRows(cmd *cobra.Command, rows []inventory.Row) {
	cmd.Println("#Network|Station|Location|Channel|Latitude|Longitude|SampleRate|StartTime|EndTime")
	for _, r := range rows {
		rate := ""
		if r.SampleRate != nil {
			rate = fmt.Sprintf("%g", *r.SampleRate)
		}
		end := ""
		if r.EndTime != nil {
			end = r.EndTime.UTC().Format("2006-01-02T15:04:05")
		}
		cmd.Printf("%s|%s|%s|%s|%g|%g|%s|%s|%s\n",
			r.Network, r.Station, r.Location, r.Channel,
			r.Latitude, r.Longitude, rate,
			r.StartTime.UTC().Format("2006-01-02T15:04:05"), end)
	}
}

// parseTimeFlag accepts RFC3339, a date-time without zone, or a bare date.
func parseTimeFlag(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid time %q (want RFC3339 or YYYY-MM-DD)", s)
}
