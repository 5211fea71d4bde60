package scheduler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ebk1996/services/internal/backend"
	"github.com/ebk1996/services/internal/domain"
	"github.com/ebk1996/services/internal/logger"
	"github.com/ebk1996/services/internal/seed"
)

// SeedReloader keeps the board stocked from a listings seed file: one
// import on start, periodic re-imports, re-imports when the file
// changes on disk, and manual triggers from the reload endpoint.
type SeedReloader struct {
	loader        *seed.Loader
	mapper        *seed.Mapper
	store         backend.ListingStore
	logger        logger.Logger
	interval      time.Duration
	filePath      string
	watchFile     bool
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSeedReloader creates a new seed reloader
func NewSeedReloader(
	seedFile string,
	store backend.ListingStore,
	log logger.Logger,
	interval time.Duration,
	watchFile bool,
	manualTrigger chan struct{},
) *SeedReloader {
	return &SeedReloader{
		loader:        seed.NewLoader(seedFile),
		mapper:        seed.NewMapper(),
		store:         store,
		logger:        log,
		interval:      interval,
		filePath:      seedFile,
		watchFile:     watchFile,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports the seed immediately, then keeps re-importing on the
// configured interval, on file changes, and on manual triggers. A
// failed import never takes the board down; the next trigger retries.
func (sr *SeedReloader) Start(ctx context.Context) error {
	if err := sr.Reload(ctx); err != nil {
		sr.logger.Error("initial seed import failed",
			logger.String("file", sr.filePath),
			logger.Error(err))
	}

	watcher := sr.startWatcher()
	var fileEvents chan fsnotify.Event
	var fileErrors chan error
	if watcher != nil {
		fileEvents = watcher.Events
		fileErrors = watcher.Errors
	}

	ticker := time.NewTicker(sr.interval)
	go func() {
		defer ticker.Stop()
		if watcher != nil {
			defer func() { _ = watcher.Close() }()
		}
		for {
			select {
			case <-ticker.C:
				sr.reloadAndLog(ctx)
			case <-sr.manualTrigger:
				sr.logger.Info("manual seed reload triggered")
				sr.reloadAndLog(ctx)
			case event, ok := <-fileEvents:
				if !ok {
					fileEvents = nil
					continue
				}
				if !sr.isSeedEvent(event) {
					continue
				}
				sr.logger.Info("seed file changed on disk",
					logger.String("op", event.Op.String()))
				sr.reloadAndLog(ctx)
			case err, ok := <-fileErrors:
				if !ok {
					fileErrors = nil
					continue
				}
				sr.logger.Warn("seed file watcher error",
					logger.Error(err))
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (sr *SeedReloader) Stop() {
	close(sr.stopCh)
}

// startWatcher watches the seed file's directory. Editors replace files
// on save, so watching the file itself would lose the watch after the
// first rename.
func (sr *SeedReloader) startWatcher() *fsnotify.Watcher {
	if !sr.watchFile {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		sr.logger.Warn("seed file watching disabled",
			logger.Error(err))
		return nil
	}
	if err := watcher.Add(filepath.Dir(sr.filePath)); err != nil {
		sr.logger.Warn("seed file watching disabled",
			logger.String("dir", filepath.Dir(sr.filePath)),
			logger.Error(err))
		_ = watcher.Close()
		return nil
	}

	sr.logger.Info("watching seed file",
		logger.String("file", sr.filePath))
	return watcher
}

func (sr *SeedReloader) isSeedEvent(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != filepath.Clean(sr.filePath) {
		return false
	}
	return event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Rename)
}

func (sr *SeedReloader) reloadAndLog(ctx context.Context) {
	if err := sr.Reload(ctx); err != nil {
		sr.logger.Error("failed to reload seed",
			logger.Error(err))
	}
}

// Reload imports the seed file into the board: new entries are created,
// changed entries rewritten, and seeded entries that left the file are
// deleted. Listings created through the board are never touched.
func (sr *SeedReloader) Reload(ctx context.Context) error {
	sr.logger.Info("importing listings from seed file")

	config, err := sr.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load seed: %w", err)
	}

	wanted, err := sr.mapper.MapListings(config)
	if err != nil {
		return fmt.Errorf("failed to map seed listings: %w", err)
	}

	current, err := sr.store.Listings(ctx)
	if err != nil {
		return fmt.Errorf("failed to read board: %w", err)
	}

	existing := make(map[string]*domain.Listing)
	for _, l := range current {
		if strings.HasPrefix(l.ID, seed.IDPrefix) {
			existing[l.ID] = l
		}
	}

	wantedIDs := make(map[string]bool, len(wanted))
	created, updated := 0, 0
	for _, l := range wanted {
		wantedIDs[l.ID] = true

		if cur, ok := existing[l.ID]; ok {
			if cur.Name == l.Name && cur.Description == l.Description {
				// Unchanged, keep its timestamp
				continue
			}
			updated++
		} else {
			created++
		}

		if _, err := sr.store.CreateListing(ctx, l); err != nil {
			return fmt.Errorf("failed to seed listing %s: %w", l.ID, err)
		}
	}

	removed := 0
	for id := range existing {
		if wantedIDs[id] {
			continue
		}
		if err := sr.store.DeleteListing(ctx, id); err != nil {
			sr.logger.Warn("failed to remove dropped seed listing",
				logger.String("id", id),
				logger.Error(err))
			continue
		}
		removed++
	}

	if created+updated+removed > 0 {
		sr.logger.Info("seed import completed",
			logger.Int("created", created),
			logger.Int("updated", updated),
			logger.Int("removed", removed),
			logger.Int("seeded_total", len(wanted)))
	} else {
		sr.logger.Debug("seed import found nothing to change")
	}

	return nil
}
