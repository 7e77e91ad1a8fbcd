package scheduler

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"terrascope/server/internal/database"
	"terrascope/server/internal/ingest"
)

// JobType identifies the background maintenance jobs
type JobType int

const (
	JobTypeImport JobType = iota
	JobTypeGeocode
	JobTypeMarketRefresh
)

// String returns the string representation of a JobType
func (j JobType) String() string {
	switch j {
	case JobTypeImport:
		return "import"
	case JobTypeGeocode:
		return "geocode"
	case JobTypeMarketRefresh:
		return "market_refresh"
	default:
		return "unknown"
	}
}

// Scheduler periodically runs the maintenance chain: import pending feed
// files, geocode listings that gained an address, then recompute market
// deviations over the refreshed population.
type Scheduler struct {
	importer *ingest.Manager
	db       *database.Database
	geocoder database.Geocoder
	logger   *logrus.Logger
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
	jobMutex sync.Mutex // jobs never overlap
}

// NewScheduler creates a scheduler; an interval of 0 disables the loop.
func NewScheduler(importer *ingest.Manager, db *database.Database, geocoder database.Geocoder, interval time.Duration, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	return &Scheduler{
		importer: importer,
		db:       db,
		geocoder: geocoder,
		logger:   logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start launches the background loop
func (s *Scheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("Scheduler disabled (interval is 0)")
		return
	}

	s.wg.Add(1)
	go s.run()
	s.logger.Infof("Scheduler started with interval %s", s.interval)
}

// Stop shuts the loop down and waits for a running job chain to finish
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.RunAll()
		}
	}
}

// RunAll executes the full job chain once, sequentially.
func (s *Scheduler) RunAll() {
	s.runJob(JobTypeImport)
	s.runJob(JobTypeGeocode)
	s.runJob(JobTypeMarketRefresh)
}

func (s *Scheduler) runJob(job JobType) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	start := time.Now()
	log := s.logger.WithField("job", job.String())
	log.Info("Running scheduled job")

	var err error
	switch job {
	case JobTypeImport:
		var imported int
		imported, err = s.importer.ImportFeeds()
		if err == nil {
			log = log.WithField("imported", imported)
		}
	case JobTypeGeocode:
		var updated int
		updated, err = s.db.UpdateMissingCoordinates(s.geocoder)
		if err == nil {
			log = log.WithField("geocoded", updated)
		}
	case JobTypeMarketRefresh:
		err = s.db.RefreshMarketStats()
	}

	if err != nil {
		log.WithError(err).Error("Scheduled job failed")
		return
	}

	log.WithField("duration", time.Since(start).String()).Info("Scheduled job completed")
}
