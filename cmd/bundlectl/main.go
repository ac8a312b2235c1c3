// bundlectl moves workflow bundles in and out of a flowport database from
// the command line, bypassing the HTTP surface. It talks to the same store
// and registry the server does, so its validation results match exactly.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"flowport/backend/internal/config"
	"flowport/backend/internal/export"
	"flowport/backend/internal/importer"
	"flowport/backend/internal/repository"
	"flowport/backend/internal/services"
)

var configFile string

func main() {
	root := &cobra.Command{
		Use:           "bundlectl",
		Short:         "Export, validate and import workflow bundles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to config file")

	root.AddCommand(exportCmd(), validateCmd(), importCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export ID...",
		Short: "Export workflows by internal id into a bundle file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closer, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer closer()

			raw, err := export.NewExporter(store).Export(ctx, args)
			if err != nil {
				return err
			}

			if out == "" || out == "-" {
				_, err = cmd.OutOrStdout().Write(raw)
				return err
			}
			if err := os.WriteFile(out, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d workflows to %s\n", len(args), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Run a bundle through the full validation pipeline without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			imp, closer, err := openImporter(ctx)
			if err != nil {
				return err
			}
			defer closer()

			if err := imp.Validate(ctx, raw); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Bundle is valid")
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a bundle as one all-or-nothing transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			imp, closer, err := openImporter(ctx)
			if err != nil {
				return err
			}
			defer closer()

			report, err := imp.Import(ctx, raw, importer.Options{Force: force})
			if err != nil {
				return err
			}
			for _, w := range report.Workflows {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", w.Key, w.Outcome)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing workflows matched by key")
	return cmd
}

func openStore(ctx context.Context) (repository.Store, func(), error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	return openStoreWith(ctx, cfg)
}

func openStoreWith(ctx context.Context, cfg *config.Config) (repository.Store, func(), error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DB.Host, cfg.DB.Port, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.SSLMode,
	)
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return repository.NewPostgresWorkflowStore(pool), pool.Close, nil
}

func openImporter(ctx context.Context) (*importer.Importer, func(), error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, nil, err
	}
	store, closer, err := openStoreWith(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	registry := services.NewHTTPRegistryClient(cfg.Runtime.URL)
	return importer.New(store, registry), closer, nil
}
