package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/query-triage/internal/classifier"
	"github.com/spec-kit/query-triage/internal/persistence"
	"github.com/spec-kit/query-triage/migrations"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrateUp(cmd.Context())
		},
	})
	return cmd
}

func runMigrateUp(ctx context.Context) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required to run migrations")
	}

	applied, err := persistence.RunMigrations(ctx, pg.Pool, migrations.Files, logger)
	if err != nil {
		return err
	}
	logger.Info("migrations complete", zap.Int("applied", applied))
	return nil
}

type classifyOptions struct {
	subject string
	body    string
	catalog string
}

func newClassifyCommand() *cobra.Command {
	opts := &classifyOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify a message against the category catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.catalog
			if path == "" {
				cfg, _, err := bootstrap()
				if err != nil {
					return err
				}
				path = cfg.Catalog.File
			}
			catalog, err := classifier.LoadCatalogFile(path)
			if err != nil {
				return err
			}
			result := catalog.Classify(opts.subject, opts.body)
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"category": result.Category,
				"priority": result.Priority,
			})
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "", "message subject")
	cmd.Flags().StringVar(&opts.body, "body", "", "message body")
	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "catalog file (defaults to CATEGORIES_FILE)")
	return cmd
}
