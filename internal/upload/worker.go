package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"jordanella.com/linewatch/internal/bot"
)

type job struct {
	name  string
	paths []string
}

// Worker uploads detection overlays in the background so the loop never waits on the network
type Worker struct {
	uploader *Uploader
	jobs     chan job
	limiter  *rate.Limiter
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
	done   int
	failed int
}

// NewWorker starts a background uploader
func NewWorker(uploader *Uploader, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := uploader.Config()
	size := cfg.QueueSize
	if size <= 0 {
		size = 16
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		uploader: uploader,
		jobs:     make(chan job, size),
		limiter:  rate.NewLimiter(limit, 1),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// OnDetection queues the saved overlay for upload; detections without a saved overlay are skipped
func (w *Worker) OnDetection(record bot.DetectionRecord) {
	if record.OverlayPath == "" {
		return
	}
	name := fmt.Sprintf("detection_%s_%d", record.RunID, record.DetectedAt.UnixMilli())
	w.Enqueue(name, record.OverlayPath)
}

// Enqueue queues files to be zipped and uploaded as <name>.zip.
// Returns false when the queue is full or the worker is closed.
func (w *Worker) Enqueue(name string, paths ...string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return false
	}
	select {
	case w.jobs <- job{name: name, paths: paths}:
		return true
	default:
		w.logger.Warn("Upload queue full, dropping", zap.String("name", name))
		return false
	}
}

// Stats returns how many uploads finished and failed
func (w *Worker) Stats() (done, failed int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done, w.failed
}

// Close stops accepting work, lets queued uploads finish until timeout, then cancels the rest
func (w *Worker) Close(timeout time.Duration) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.jobs)
	w.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		w.cancel()
		return nil
	case <-time.After(timeout):
		w.cancel()
		<-finished
		return fmt.Errorf("upload worker closed with pending uploads after %v", timeout)
	}
}

func (w *Worker) run() {
	defer w.wg.Done()
	for j := range w.jobs {
		if err := w.limiter.Wait(w.ctx); err != nil {
			w.record(err)
			continue
		}
		w.record(w.process(j))
	}
}

func (w *Worker) process(j job) error {
	archive, err := ZipFiles(j.paths...)
	if err != nil {
		return err
	}
	return w.uploader.Upload(w.ctx, archive, j.name+".zip")
}

func (w *Worker) record(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failed++
		w.logger.Warn("Background upload failed", zap.Error(err))
		return
	}
	w.done++
}
