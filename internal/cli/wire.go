package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"recallwatch/internal/config"
	"recallwatch/internal/fetch"
	"recallwatch/internal/logging"
	"recallwatch/internal/metrics"
	"recallwatch/internal/pipeline"
	"recallwatch/internal/store"
)

// loadConfig resolves configuration for cmd and builds the logger.
func loadConfig(cmd *cobra.Command, stderr io.Writer) (config.Config, *logrus.Logger, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cmd.Flags(), file)
	if err != nil {
		return cfg, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, stderr)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// openStore connects to the raw layer. Local sqlite databases are migrated
// on open; postgres schemas are managed separately (see migrate).
func openStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger, m *metrics.Metrics) (*store.Store, error) {
	db, dialect, err := store.Open(store.Config{URL: cfg.Database.URL, ChunkSize: cfg.Database.ChunkSize})
	if err != nil {
		return nil, err
	}
	if dialect == store.SQLite {
		if err := store.Migrate(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	log.WithField("dialect", dialect).Debug("raw layer opened")
	return store.New(db, dialect, cfg.Database.ChunkSize, log, m), nil
}

func newPipeline(cfg config.Config, st *store.Store, log logrus.FieldLogger, m *metrics.Metrics, ev pipeline.Publisher) *pipeline.Pipeline {
	socrata := fetch.NewSocrataClient(fetch.SocrataConfig{
		BaseURL:   cfg.Socrata.BaseURL,
		AppToken:  cfg.Socrata.AppToken,
		UserAgent: cfg.HTTP.UserAgent,
		PageSize:  cfg.Socrata.PageSize,
		PageDelay: cfg.Socrata.RateLimit,
		Timeout:   cfg.HTTP.Timeout,
	}, log, m)

	var complaints pipeline.ComplaintFetcher
	switch cfg.Complaints.Source {
	case fetch.ComplaintSourceSocrata:
		complaints = fetch.SocrataComplaints{Client: socrata, Dataset: cfg.Socrata.ComplaintsDataset}
	default:
		complaints = fetch.NewNHTSAClient(fetch.NHTSAConfig{
			BaseURL:   cfg.NHTSA.BaseURL,
			UserAgent: cfg.HTTP.UserAgent,
			Timeout:   cfg.HTTP.Timeout,
		}, log, m)
	}

	return &pipeline.Pipeline{
		Recalls:        socrata,
		Complaints:     complaints,
		Store:          st,
		RecallsDataset: cfg.Socrata.RecallsDataset,
		Events:         ev,
		Metrics:        m,
		Log:            log,
	}
}

func runOptions(cfg config.Config) pipeline.Options {
	return pipeline.Options{
		Make:      cfg.Make,
		Start:     cfg.Start,
		End:       cfg.End,
		Model:     cfg.Model,
		ModelYear: cfg.ModelYear,
	}
}

// warnDefaultSecret logs when operator tokens are signed with the built-in
// secret, which anyone can use to mint them.
func warnDefaultSecret(cfg config.Config, log logrus.FieldLogger) bool {
	if cfg.Auth.JWTSecret != config.DefaultJWTSecret {
		return false
	}
	log.WithField("key", "auth.jwt_secret").Warn("using the default jwt secret; set RECALLWATCH_AUTH_JWT_SECRET before exposing POST /ingest")
	return true
}
