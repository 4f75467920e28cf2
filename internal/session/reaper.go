package session

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Reaper evicts idle sessions on a fixed schedule. It can additionally
// be kicked after a chat request so eviction is not coupled to request
// volume alone. Sweeps go through the store API only.
type Reaper struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	cron     *cron.Cron
	kick     chan struct{}
	stop     chan struct{}
}

func NewReaper(store *Store, ttl, interval time.Duration) *Reaper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Reaper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		cron:     cron.New(cron.WithLocation(time.UTC)),
		kick:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Start schedules periodic sweeps and begins serving kicks.
func (r *Reaper) Start() error {
	if _, err := r.cron.AddFunc("@every "+r.interval.String(), func() { r.Sweep() }); err != nil {
		return err
	}
	go r.run()
	r.cron.Start()
	log.Info().Dur("ttl", r.ttl).Dur("interval", r.interval).Msg("session reaper started")
	return nil
}

// Stop halts the schedule. Pending sweeps finish first.
func (r *Reaper) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	close(r.stop)
}

// Kick requests an asynchronous sweep. It never blocks; an already
// pending kick is enough.
func (r *Reaper) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Sweep evicts every session idle beyond the retention TTL. Idempotent
// and safe to invoke concurrently with live traffic.
func (r *Reaper) Sweep() int {
	evicted := r.store.EvictIdle(r.ttl)
	if evicted > 0 {
		log.Info().Int("evicted", evicted).Int("remaining", r.store.Len()).Msg("reaped idle sessions")
	}
	return evicted
}

func (r *Reaper) run() {
	for {
		select {
		case <-r.stop:
			return
		case <-r.kick:
			r.Sweep()
		}
	}
}
