package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"level-publish-system/config"
	"level-publish-system/docstore"
	"level-publish-system/logger"
	"level-publish-system/models"
	"level-publish-system/services"
	"level-publish-system/submission"
	"level-publish-system/utils"
	"level-publish-system/workers"

	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type IngestOptions struct {
	*RootOptions
	BodyFile  string
	Author    string
	AvatarURL string
	Number    int64
	Mirror    bool
}

func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Apply one issue body to the document store",
		Long: `Parse, validate and apply one submission.

Example:
  levelctl ingest --body-file issue.md --author octo --number 42
  echo "$ISSUE_BODY" | levelctl ingest --body-file - --author octo --number 42 --mirror`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.BodyFile, "body-file", "", `file holding the issue body ("-" for stdin)`)
	cmd.Flags().StringVar(&opts.Author, "author", "", "submitter login")
	cmd.Flags().StringVar(&opts.AvatarURL, "avatar", "", "submitter avatar URL")
	cmd.Flags().Int64Var(&opts.Number, "number", 0, "issue number, used as the level id")
	cmd.Flags().BoolVar(&opts.Mirror, "mirror", false, "also write the change to the database")
	_ = cmd.MarkFlagRequired("body-file")
	_ = cmd.MarkFlagRequired("author")

	return cmd
}

func runIngest(cmd *cobra.Command, opts *IngestOptions) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := setup(opts.RootOptions)
	if err != nil {
		return err
	}
	body, err := readBody(cmd.InOrStdin(), opts.BodyFile)
	if err != nil {
		return err
	}

	docs, err := openDocStore(ctx, cfg)
	if err != nil {
		return err
	}
	validator, err := submission.NewValidator()
	if err != nil {
		return err
	}

	var levels *services.LevelService
	if opts.Mirror {
		db, err := openDB(cfg)
		if err != nil {
			return err
		}
		levels = services.NewLevelService(db, cfg.Levels.EnforceOwnership)
	}

	result, err := services.NewIngestService(docs, validator, levels).Process(ctx, services.Submission{
		Body:      body,
		Author:    opts.Author,
		AvatarURL: opts.AvatarURL,
		Number:    opts.Number,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), result)
}

type ValidateOptions struct {
	*RootOptions
	BodyFile string
}

func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Parse and validate an issue body without applying it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.BodyFile, "body-file", "-", `file holding the issue body ("-" for stdin)`)
	return cmd
}

func runValidate(cmd *cobra.Command, opts *ValidateOptions) error {
	body, err := readBody(cmd.InOrStdin(), opts.BodyFile)
	if err != nil {
		return err
	}
	validator, err := submission.NewValidator()
	if err != nil {
		return err
	}

	action, err := validator.Decode(submission.ParseSections(body))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"kind": action.Kind(), "action": action})
}

func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one document store to database reconciliation pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := setup(rootOpts)
			if err != nil {
				return err
			}
			docs, err := openDocStore(ctx, cfg)
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}

			worker := workers.NewReconcileWorker(docs, services.NewLevelService(db, cfg.Levels.EnforceOwnership), 0)
			stats, err := worker.RunOnce(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func setup(opts *RootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateDocStore(); err != nil {
		return nil, err
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func openDocStore(ctx context.Context, cfg *config.Config) (*docstore.Repository, error) {
	var backend docstore.Backend
	switch cfg.DocStore.Backend {
	case config.DocStoreR2:
		r2, err := utils.NewR2(ctx, cfg.R2)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize R2 client: %w", err)
		}
		backend = docstore.NewR2Backend(r2.Client, r2.Bucket, cfg.DocStore.ObjectKey)
	default:
		backend = docstore.NewFileBackend(cfg.DocStore.Path)
	}
	return docstore.NewRepository(backend, cfg.DocStore.MaxAttempts), nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable not set")
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&models.Level{}, &models.Like{}, &models.Profile{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func readBody(stdin io.Reader, path string) (string, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read issue body: %w", err)
	}
	return string(raw), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
