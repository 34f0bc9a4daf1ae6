package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"postwatch/internal/config"
	"postwatch/internal/cursor"
	"postwatch/internal/notify"
	"postwatch/internal/novelty"
	"postwatch/internal/scrape"
	"postwatch/internal/store"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run one fetch-extract-notify cycle",
	RunE:  checkAction,
}

func checkAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return runCheck(cmd.Context(), cfg, newLogger(cfg.Log.Level))
}

// runCheck is one full run: load cursor, fetch, extract, filter, deliver,
// persist. Everything before the cursor write fails soft; a cursor write
// failure is the only fatal outcome.
func runCheck(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cur, err := cursor.NewFileStore(cfg.Cursor.Path)
	if err != nil {
		return err
	}
	last, err := cur.Load()
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	logger.Info().Str("cursor", last).Str("profile", cfg.Profile.URL).Msg("checking for new posts")

	scraper, err := buildScraper(cfg, logger)
	if err != nil {
		return err
	}

	records := scraper.Fetch(ctx)
	if len(records) == 0 {
		logger.Info().Msg("no posts found")
		return nil
	}
	logger.Debug().Int("count", len(records)).Msg("extracted posts")

	fresh, next := novelty.Filter(last, records)
	if len(fresh) == 0 {
		logger.Info().Msg("no new posts")
		return nil
	}
	logger.Info().Int("new", len(fresh)).Msg("found new posts")

	client := notify.NewLine(cfg.Line.Endpoint, cfg.Line.Token, cfg.Line.UserID, logger)
	delivered := deliverAll(ctx, client, fresh, logger)

	archiveBatch(ctx, cfg, fresh, delivered, logger)

	// The cursor tracks what was observed, not what was delivered: a post
	// whose send failed is not retried on the next run.
	if err := cur.Save(next); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	logger.Info().Str("cursor", next).Msg("cursor advanced")
	return nil
}

func buildScraper(cfg *config.Config, logger zerolog.Logger) (*scrape.Scraper, error) {
	if cfg.Profile.Format == config.FormatRSS {
		ex, err := scrape.NewRSS(cfg.Profile.URL)
		if err != nil {
			return nil, fmt.Errorf("create rss extractor: %w", err)
		}
		return scrape.NewScraper(scrape.FeedURL(cfg.Profile.URL), ex, logger)
	}

	ex, err := scrape.NewHTML(cfg.Profile.URL, scrape.Selectors{
		Containers: cfg.Profile.Selectors.Containers,
		Content:    cfg.Profile.Selectors.Content,
		Timestamp:  cfg.Profile.Selectors.Timestamp,
		Link:       cfg.Profile.Selectors.Link,
	})
	if err != nil {
		return nil, fmt.Errorf("create html extractor: %w", err)
	}
	return scrape.NewScraper(cfg.Profile.URL, ex, logger)
}

// deliverAll sends one notification per record and reports which IDs went
// out. A failed send is logged and the rest of the batch still goes; missing
// credentials skip delivery for the whole run.
func deliverAll(ctx context.Context, client *notify.LineClient, records []scrape.Record, logger zerolog.Logger) map[string]bool {
	delivered := make(map[string]bool, len(records))

	if !client.Configured() {
		logger.Error().Msg("line credentials missing, skipping delivery")
		return delivered
	}

	for _, rec := range records {
		if err := client.Push(ctx, notify.FormatRecord(rec)); err != nil {
			logger.Error().Err(err).Str("post", rec.ID).Msg("deliver notification")
			continue
		}
		delivered[rec.ID] = true
		logger.Info().Str("post", rec.ID).Msg("notification sent")
	}
	return delivered
}

// archiveBatch best-effort records the batch in the sqlite archive. Archive
// trouble is logged and never blocks the cursor write.
func archiveBatch(ctx context.Context, cfg *config.Config, records []scrape.Record, delivered map[string]bool, logger zerolog.Logger) {
	if cfg.Storage.Disabled {
		return
	}

	db, err := store.Open(cfg.Storage.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("open archive")
		return
	}
	defer func() { _ = db.Close() }()

	now := time.Now()
	for _, rec := range records {
		err := db.RecordPost(ctx, store.PostInput{
			PostID:     rec.ID,
			Content:    rec.Content,
			Link:       rec.Link,
			PostedAt:   rec.Timestamp,
			Delivered:  delivered[rec.ID],
			NotifiedAt: now,
		})
		if err != nil {
			logger.Warn().Err(err).Str("post", rec.ID).Msg("archive post")
		}
	}

	if n, err := db.PruneOld(ctx, cfg.Storage.RetainDays); err != nil {
		logger.Warn().Err(err).Msg("prune archive")
	} else if n > 0 {
		logger.Debug().Int64("pruned", n).Msg("pruned archive")
	}
}
