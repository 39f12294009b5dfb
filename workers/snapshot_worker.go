package workers

import (
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/straysafe/straysafebackend/logging"
	"github.com/straysafe/straysafebackend/metrics"
	"github.com/straysafe/straysafebackend/realtime"
)

const (
	defaultQueueSize  = 100
	defaultNumWorkers = 1
)

// SnapshotJob asks for a thumbnail of a stored sighting snapshot.
type SnapshotJob struct {
	PinID        uint
	MapID        *uint
	SnapshotPath string // relative media store path
}

// Thumbnailer turns a stored image into a thumbnail and returns its path.
type Thumbnailer interface {
	ThumbnailFromAsset(relPath string, maxSize int) (string, error)
	RemoveAsset(relPath string) error
}

// ThumbnailRecorder stores the generated thumbnail path on the pin. It
// returns gorm.ErrRecordNotFound when the pin no longer exists.
type ThumbnailRecorder interface {
	UpdateThumbnailPath(id uint, thumbPath string) error
}

// SnapshotProcessor generates thumbnails for new sighting snapshots in the
// background. Jobs for a pin already waiting are dropped.
type SnapshotProcessor struct {
	JobQueue chan SnapshotJob
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[uint]bool
	Mutex    sync.Mutex

	thumbs   Thumbnailer
	pins     ThumbnailRecorder
	hub      realtime.Broadcaster
	maxSize  int
	stopOnce sync.Once
}

func NewSnapshotProcessor(thumbs Thumbnailer, pins ThumbnailRecorder, hub realtime.Broadcaster, maxSize, queueSize, numWorkers int) *SnapshotProcessor {
	if numWorkers <= 0 {
		numWorkers = defaultNumWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	sp := &SnapshotProcessor{
		JobQueue: make(chan SnapshotJob, queueSize),
		StopChan: make(chan struct{}),
		Pending:  make(map[uint]bool),
		thumbs:   thumbs,
		pins:     pins,
		hub:      hub,
		maxSize:  maxSize,
	}

	sp.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go sp.worker(i)
	}
	logging.Info().Int("workers", numWorkers).Int("queue_size", queueSize).Msg("snapshot thumbnail workers started")
	return sp
}

func (sp *SnapshotProcessor) worker(id int) {
	defer sp.Wg.Done()
	for {
		select {
		case job := <-sp.JobQueue:
			sp.processJob(job)
			sp.Mutex.Lock()
			delete(sp.Pending, job.PinID)
			sp.Mutex.Unlock()
		case <-sp.StopChan:
			logging.Debug().Int("worker", id).Msg("snapshot worker stopping")
			return
		}
	}
}

func (sp *SnapshotProcessor) processJob(job SnapshotJob) {
	log := logging.With().Uint("pin_id", job.PinID).Str("snapshot", job.SnapshotPath).Logger()

	thumbPath, err := sp.thumbs.ThumbnailFromAsset(job.SnapshotPath, sp.maxSize)
	if err != nil {
		metrics.ThumbnailJobs.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("thumbnail generation failed")
		return
	}

	if err := sp.pins.UpdateThumbnailPath(job.PinID, thumbPath); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// pin was deleted while the job ran
			metrics.ThumbnailJobs.WithLabelValues("orphaned").Inc()
			log.Debug().Str("thumbnail", thumbPath).Msg("pin gone, removing thumbnail")
			if rmErr := sp.thumbs.RemoveAsset(thumbPath); rmErr != nil {
				log.Warn().Err(rmErr).Str("thumbnail", thumbPath).Msg("failed to remove orphaned thumbnail")
			}
			return
		}
		metrics.ThumbnailJobs.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("failed to record thumbnail path")
		return
	}

	metrics.ThumbnailJobs.WithLabelValues("ok").Inc()
	log.Debug().Str("thumbnail", thumbPath).Msg("thumbnail recorded")

	if sp.hub != nil {
		sp.hub.Broadcast(realtime.Event{
			Type:  realtime.EventPinThumbnail,
			PinID: job.PinID,
			MapID: job.MapID,
			Pin:   map[string]string{"thumbnail_path": thumbPath},
		})
	}
}

// QueueJob reports whether the job was accepted. It never blocks.
func (sp *SnapshotProcessor) QueueJob(job SnapshotJob) bool {
	sp.Mutex.Lock()
	if sp.Pending[job.PinID] {
		sp.Mutex.Unlock()
		return false
	}
	sp.Pending[job.PinID] = true
	sp.Mutex.Unlock()

	select {
	case sp.JobQueue <- job:
		return true
	default:
		logging.Warn().Uint("pin_id", job.PinID).Msg("snapshot job queue full, dropping thumbnail job")
		metrics.ThumbnailJobs.WithLabelValues("dropped").Inc()
		sp.Mutex.Lock()
		delete(sp.Pending, job.PinID)
		sp.Mutex.Unlock()
		return false
	}
}

// Stop waits for in-flight jobs. Jobs still queued are abandoned.
func (sp *SnapshotProcessor) Stop() {
	sp.stopOnce.Do(func() {
		close(sp.StopChan)
		sp.Wg.Wait()
		logging.Info().Msg("snapshot thumbnail workers stopped")
	})
}
