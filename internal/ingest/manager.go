package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"terrascope/server/internal/models"
	"terrascope/server/internal/queue"
)

// Manager feeds scraped listings into the ingest queue. The upstream
// scraper runs outside this process and drops JSON feed files (arrays of
// listings) into the feed directory; imported files are renamed so a
// crashed run never double-imports.
type Manager struct {
	logger       *logrus.Logger
	feedDir      string
	maxBatchSize int
	queue        *queue.ListingQueue
}

// NewManager creates a feed import manager
func NewManager(q *queue.ListingQueue, feedDir string, maxBatchSize int, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if maxBatchSize <= 0 {
		maxBatchSize = 100
	}

	return &Manager{
		logger:       logger,
		feedDir:      feedDir,
		maxBatchSize: maxBatchSize,
		queue:        q,
	}
}

// ImportFeeds imports every pending feed file, returning the number of
// listings pushed to the queue.
func (m *Manager) ImportFeeds() (int, error) {
	entries, err := os.ReadDir(m.feedDir)
	if err != nil {
		return 0, fmt.Errorf("failed to read feed directory: %w", err)
	}

	var total int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(m.feedDir, entry.Name())
		count, err := m.ImportFile(path)
		if err != nil {
			m.logger.WithError(err).WithField("file", entry.Name()).Error("Failed to import feed file")
			continue
		}
		total += count

		// Rename rather than delete, so a bad import can be replayed
		if err := os.Rename(path, path+".done"); err != nil {
			m.logger.WithError(err).WithField("file", entry.Name()).Error("Failed to mark feed file as imported")
		}
	}

	if total > 0 {
		m.logger.WithField("total_items", total).Info("Feed import completed")
	}
	return total, nil
}

// ImportFile parses one feed file and pushes its listings to the queue in
// batches.
func (m *Manager) ImportFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read feed file: %w", err)
	}

	var items []*models.Property
	if err := json.Unmarshal(data, &items); err != nil {
		return 0, fmt.Errorf("failed to parse feed file: %w", err)
	}

	var imported int
	for start := 0; start < len(items); start += m.maxBatchSize {
		end := start + m.maxBatchSize
		if end > len(items) {
			end = len(items)
		}

		batch := make(queue.Batch, 0, end-start)
		for _, item := range items[start:end] {
			if item.ReferenceCode == "" {
				m.logger.WithField("title", item.Title).Warn("Skipping feed item without reference code")
				continue
			}
			// Identity is assigned by the store, never by the feed
			item.ID = 0
			batch = append(batch, item)
		}
		if len(batch) == 0 {
			continue
		}

		if err := m.queue.Push(batch); err != nil {
			return imported, fmt.Errorf("failed to enqueue batch: %w", err)
		}
		imported += len(batch)
	}

	m.logger.WithFields(logrus.Fields{
		"file":  filepath.Base(path),
		"items": imported,
	}).Info("Imported feed file")

	return imported, nil
}
