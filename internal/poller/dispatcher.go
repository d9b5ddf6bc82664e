package poller

import (
	"context"
	"errors"
	"log"
	"runtime"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/netpulse/netpulse/internal/alerts"
	"github.com/netpulse/netpulse/internal/database"
	"github.com/netpulse/netpulse/internal/engine"
	"github.com/netpulse/netpulse/internal/ratelimit"
)

// Stats holds aggregate poll counters for observability
type Stats struct {
	PollsTotal   int64 `json:"polls_total"`
	PollsSuccess int64 `json:"polls_success"`
	PollsFailed  int64 `json:"polls_failed"`
}

// Config tunes the dispatcher
type Config struct {
	// WorkerMultiplier times the CPU count caps simultaneous poll tasks.
	// The cap is fixed, not proportional to the due-set, so a burst of due
	// targets cannot flood the monitored network.
	WorkerMultiplier int

	// TaskTimeout is the per-target poll deadline. A task past its
	// deadline is abandoned and counted as failed.
	TaskTimeout time.Duration

	// RatePerSecond and Burst bound the rate of poll dispatch
	RatePerSecond float64
	Burst         int
}

// DefaultConfig returns the dispatcher defaults
func DefaultConfig() Config {
	return Config{
		WorkerMultiplier: 4,
		TaskTimeout:      30 * time.Second,
		RatePerSecond:    50,
		Burst:            100,
	}
}

// Dispatcher fans polling work out across the target population. Each tick
// selects the due-set in one query, then executes per-target poll tasks in
// parallel under a worker budget and rate limit. Successful results feed
// the alert engine as synthetic parsed alerts; failures are isolated per
// target and never resolve anything.
type Dispatcher struct {
	db      *gorm.DB
	engine  *engine.Engine
	pollers map[database.AddonMethod]Poller
	limiter *ratelimit.Limiter

	workers     int
	taskTimeout time.Duration
	sem         chan struct{}

	mu       sync.Mutex
	inFlight map[uint]struct{}
	stats    Stats

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher. Pollers must be registered before the
// first tick.
func NewDispatcher(db *gorm.DB, eng *engine.Engine, cfg Config) *Dispatcher {
	if cfg.WorkerMultiplier <= 0 {
		cfg.WorkerMultiplier = 4
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 30 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RatePerSecond)
	}

	workers := runtime.NumCPU() * cfg.WorkerMultiplier
	return &Dispatcher{
		db:          db,
		engine:      eng,
		pollers:     make(map[database.AddonMethod]Poller),
		limiter:     ratelimit.New(cfg.RatePerSecond, cfg.Burst),
		workers:     workers,
		taskTimeout: cfg.TaskTimeout,
		sem:         make(chan struct{}, workers),
		inFlight:    make(map[uint]struct{}),
	}
}

// RegisterPoller registers a poller for its addon method
func (d *Dispatcher) RegisterPoller(p Poller) {
	d.pollers[p.Method()] = p
	log.Printf("Registered poller for method: %s", p.Method())
}

// Stats returns a snapshot of the aggregate poll counters
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// InFlightCount returns how many poll tasks are currently running
func (d *Dispatcher) InFlightCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inFlight)
}

// Tick runs one dispatch cycle: select the due-set, then submit one
// isolated poll task per due target. Targets still in flight from a
// previous tick are skipped, not queued twice. Tick returns after
// submission; it never blocks on task completion.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	targets, err := d.dueTargets(time.Now())
	if err != nil {
		return 0, err
	}
	if len(targets) == 0 {
		return 0, nil
	}

	addons, err := d.addonsByName()
	if err != nil {
		return 0, err
	}

	dispatched := 0
	for i := range targets {
		target := targets[i]

		d.mu.Lock()
		if _, running := d.inFlight[target.ID]; running {
			d.mu.Unlock()
			log.Printf("Target %s (%s) still running from a previous tick, skipping", target.UUID, target.IPAddress)
			continue
		}
		d.inFlight[target.ID] = struct{}{}
		d.mu.Unlock()

		addon := addons[target.AddonID]
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			defer d.clearInFlight(target.ID)
			d.runTask(ctx, &target, addon)
		}()
		dispatched++
	}

	return dispatched, nil
}

// PollTarget polls a single target on demand, bypassing the due-set but
// reusing the same task and result-processing path. It waits for the
// result.
func (d *Dispatcher) PollTarget(ctx context.Context, targetUUID string) (*PollResult, error) {
	var target database.Target
	if err := d.db.Where("uuid = ?", targetUUID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}

	var addon database.AddonRecord
	if err := d.db.Where("name = ?", target.AddonID).First(&addon).Error; err != nil &&
		!errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	d.mu.Lock()
	if _, running := d.inFlight[target.ID]; running {
		d.mu.Unlock()
		return nil, &ConfigurationError{TargetUUID: targetUUID, Reason: "poll already in flight"}
	}
	d.inFlight[target.ID] = struct{}{}
	d.mu.Unlock()
	defer d.clearInFlight(target.ID)

	result := d.runTask(ctx, &target, &addon)
	return result, nil
}

// Start begins the periodic dispatch loop
func (d *Dispatcher) Start(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		select {
		case <-ticker.C:
			dispatched, err := d.Tick(ctx)
			if err != nil {
				log.Printf("Poll dispatcher tick error: %v", err)
			} else if dispatched > 0 {
				log.Printf("Poll dispatcher: dispatched %d targets", dispatched)
			}
		case <-stop:
			cancel()
			d.wg.Wait()
			log.Println("Poll dispatcher stopped")
			return
		}
	}
}

// Drain waits for all in-flight poll tasks to finish
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}

// dueTargets selects enabled targets whose interval has elapsed. One query
// fetches the enabled set; the per-row interval comparison happens here
// because intervals vary per target.
func (d *Dispatcher) dueTargets(now time.Time) ([]database.Target, error) {
	var enabled []database.Target
	if err := d.db.Where("enabled = ?", true).Find(&enabled).Error; err != nil {
		return nil, err
	}

	due := enabled[:0]
	for _, t := range enabled {
		if t.Due(now) {
			due = append(due, t)
		}
	}
	return due, nil
}

func (d *Dispatcher) addonsByName() (map[string]*database.AddonRecord, error) {
	var records []database.AddonRecord
	if err := d.db.Find(&records).Error; err != nil {
		return nil, err
	}
	byName := make(map[string]*database.AddonRecord, len(records))
	for i := range records {
		byName[records[i].Name] = &records[i]
	}
	return byName, nil
}

func (d *Dispatcher) clearInFlight(targetID uint) {
	d.mu.Lock()
	delete(d.inFlight, targetID)
	d.mu.Unlock()
}

// runTask executes one poll: acquire a worker slot and a rate token, poll
// with a deadline, feed the result into the engine, and update last_poll_at
// unconditionally so the cadence holds across failures.
func (d *Dispatcher) runTask(ctx context.Context, target *database.Target, addon *database.AddonRecord) *PollResult {
	d.sem <- struct{}{}
	defer func() { <-d.sem }()

	result := d.executePoll(ctx, target, addon)
	d.processResult(target, result)
	d.touchTarget(target)
	return result
}

func (d *Dispatcher) executePoll(ctx context.Context, target *database.Target, addon *database.AddonRecord) *PollResult {
	if addon == nil || addon.Name == "" {
		err := &ConfigurationError{TargetUUID: target.UUID, Reason: "no addon registered for " + target.AddonID}
		log.Printf("Skipping target %s: %v", target.IPAddress, err)
		return &PollResult{Success: false, Err: err}
	}
	if !addon.Method.IsPolled() {
		err := &ConfigurationError{TargetUUID: target.UUID, Reason: "addon method " + string(addon.Method) + " is push-only"}
		log.Printf("Skipping target %s: %v", target.IPAddress, err)
		return &PollResult{Success: false, Err: err}
	}

	p, ok := d.pollers[addon.Method]
	if !ok {
		err := &ConfigurationError{TargetUUID: target.UUID, Reason: "no poller for method " + string(addon.Method)}
		log.Printf("Skipping target %s: %v", target.IPAddress, err)
		return &PollResult{Success: false, Err: err}
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return &PollResult{Success: false, Err: err}
	}

	taskCtx, cancel := context.WithTimeout(ctx, d.taskTimeout)
	defer cancel()

	start := time.Now()
	result := p.Poll(taskCtx, target)
	result.Duration = time.Since(start)
	return &result
}

// processResult feeds a successful poll into the alert engine. Reported
// conditions become synthetic parsed alerts; clear types become clearing
// signals. A failed poll changes nothing: the absence of a fresh signal is
// not evidence of a clear.
func (d *Dispatcher) processResult(target *database.Target, result *PollResult) {
	d.mu.Lock()
	d.stats.PollsTotal++
	if result.Success {
		d.stats.PollsSuccess++
	} else {
		d.stats.PollsFailed++
	}
	d.mu.Unlock()

	if !result.Success {
		if result.Err != nil {
			log.Printf("Poll of %s failed: %v", target.IPAddress, result.Err)
		}
		return
	}

	deviceName := target.Name
	for _, reported := range result.Alerts {
		parsed := alerts.ParsedAlert{
			AlertType:     reported.AlertType,
			DeviceIP:      target.IPAddress,
			Discriminator: reported.Discriminator,
			Severity:      alerts.NormalizeSeverity(reported.Severity),
			Category:      reported.Category,
			Title:         reported.Title,
			Message:       reported.Message,
			RawData:       reported.RawData,
		}
		if deviceName != "" {
			parsed.DeviceName = &deviceName
		}
		if _, err := d.engine.Process(parsed, target.AddonID); err != nil {
			log.Printf("Failed to process polled alert %s on %s: %v", reported.AlertType, target.IPAddress, err)
		}
	}

	for _, clearType := range result.ClearTypes {
		parsed := alerts.ParsedAlert{
			AlertType: clearType,
			DeviceIP:  target.IPAddress,
			IsClear:   true,
		}
		if _, err := d.engine.Process(parsed, target.AddonID); err != nil {
			log.Printf("Failed to process clear signal %s on %s: %v", clearType, target.IPAddress, err)
		}
	}
}

// touchTarget updates last_poll_at after every attempt, success or failure,
// to preserve the interval cadence.
func (d *Dispatcher) touchTarget(target *database.Target) {
	now := time.Now()
	if err := d.db.Model(&database.Target{}).Where("id = ?", target.ID).
		Update("last_poll_at", now).Error; err != nil {
		log.Printf("Failed to update last_poll_at for target %s: %v", target.UUID, err)
	}
}
