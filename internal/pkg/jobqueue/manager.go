package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultSweepInterval = 10 * time.Minute
	sweepLockPrefix      = "coursefox:reconcile_lock:"
)

// Manager runs the job queue and the periodic reconciliation sweep
type Manager struct {
	queue         *Queue
	client        *redis.Client
	reconciler    Reconciler
	sweepInterval time.Duration
	sweepTicker   *time.Ticker
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.Mutex
	running       bool
}

// NewManager wires the reconcile_payment handler into queue.
func NewManager(client *redis.Client, workers int, reconciler Reconciler, rec Recorder, sweepInterval time.Duration) *Manager {
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	q := NewQueue(client, workers)
	q.RegisterHandler(JobTypeReconcilePayment, NewReconcileHandler(reconciler, rec))

	return &Manager{
		queue:         q,
		client:        client,
		reconciler:    reconciler,
		sweepInterval: sweepInterval,
		stopCh:        make(chan struct{}),
	}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and reconciliation sweep")

	m.queue.Start()

	m.sweepTicker = time.NewTicker(m.sweepInterval)
	m.wg.Add(1)
	go m.sweepWorker()

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	if m.sweepTicker != nil {
		m.sweepTicker.Stop()
	}
	close(m.stopCh)
	m.running = false
	m.wg.Wait()

	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

func (m *Manager) sweepWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started reconciliation sweep (interval: %s)", m.sweepInterval)

	for {
		select {
		case <-m.stopCh:
			log.Info("[JobQueue Manager] Reconciliation sweep stopping")
			return
		case <-m.sweepTicker.C:
			if _, err := m.SweepOnce(context.Background()); err != nil {
				log.Errorf("[JobQueue Manager] Reconciliation sweep error: %v", err)
			}
		}
	}
}

// SweepOnce enqueues a reconcile job for every stale checkout session. A
// reference is enqueued at most once per sweep interval, even with several
// app instances sweeping the same database.
func (m *Manager) SweepOnce(ctx context.Context) (int, error) {
	refs, err := m.reconciler.StaleReferences(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, ref := range refs {
		ok, err := m.client.SetNX(ctx, sweepLockPrefix+ref, 1, m.sweepInterval).Result()
		if err != nil {
			return enqueued, err
		}
		if !ok {
			continue
		}
		if _, err := m.queue.EnqueueReconcile(ctx, ref); err != nil {
			_ = m.client.Del(ctx, sweepLockPrefix+ref).Err()
			return enqueued, err
		}
		enqueued++
	}
	if enqueued > 0 {
		log.Infof("[JobQueue Manager] Enqueued %d reconcile jobs", enqueued)
	}
	return enqueued, nil
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
