package persistence

import (
	"sync"
	"time"

	"github.com/roylee0704/gron"

	"tallyd/internal/engine"
	"tallyd/internal/persistence/interfaces"
	"tallyd/internal/providers"
	"tallyd/internal/structures"
)

// Scheduler runs the periodic jobs: snapshot persistence and window
// sweeping. Restore happens once at boot, Persist once more at
// shutdown; both share opsMu with the periodic save so a shutdown
// persist cannot race a timer-driven one.
type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	metrics     providers.MetricsProviderInterface
	eng         *engine.Engine
	fileManager *FileManager
	presence    engine.PresenceChecker
	cron        *gron.Cron
	opsMu       sync.Mutex
	savedAt     time.Time
}

func NewScheduler(config *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface, eng *engine.Engine, fileManager *FileManager, presence engine.PresenceChecker) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		metrics:     metrics,
		eng:         eng,
		fileManager: fileManager,
		presence:    presence,
	}
}

func (s *Scheduler) Init() {
	s.cron = gron.New()

	s.cron.AddFunc(gron.Every(s.config.Persistence.SaveInterval), func() {
		s.opsMu.Lock()
		defer s.opsMu.Unlock()

		start := time.Now()
		err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
		s.metrics.ObservePersistenceDuration(time.Since(start))
		if err != nil {
			s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
			return
		}
		s.logger.Infof(providers.TypeApp, "Persisted snapshot to file %s", s.config.Persistence.FilePath)
	})

	s.cron.AddFunc(gron.Every(s.config.Engine.SweepInterval), func() {
		s.eng.SweepWindows(time.Now())
		s.logger.Debugf(providers.TypeApp, "Window sweep complete")
	})

	s.cron.Start()
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Restore loads the last snapshot into memory. Runs before the gateway
// connects so the load cannot clobber a live event.
func (s *Scheduler) Restore() error {
	snapshot, err := s.fileManager.LoadFromFile(s.config.Persistence.FilePath)
	if err != nil {
		return err
	}
	if snapshot != nil {
		s.savedAt = snapshot.SavedAt
	}
	s.eng.RestoreSnapshot(snapshot)
	return nil
}

// Reconcile closes restored sessions whose user is gone. Runs after the
// gateway is connected so presence answers are live.
func (s *Scheduler) Reconcile() {
	s.eng.ReconcileSessions(s.savedAt, time.Now().UTC(), s.presence)
}

func (s *Scheduler) Persist() error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	s.logger.Infof(providers.TypeApp, "Persisting snapshot to file...")
	start := time.Now()
	err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	return nil
}
