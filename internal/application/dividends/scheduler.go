package dividends

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheduler runs DistributeDue on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	service *Service
	entry   cron.EntryID
}

// NewScheduler parses spec (standard 5-field cron, or descriptors like
// "@monthly") and registers the due-dividend job. It does not start it.
func NewScheduler(service *Service, spec string) (*Scheduler, error) {
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		service: service,
	}
	id, err := s.cron.AddFunc(spec, s.run)
	if err != nil {
		return nil, err
	}
	s.entry = id
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	done, err := s.service.DistributeDue(ctx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("Due dividend run finished with errors")
	}
	if len(done) > 0 {
		log.Info().Int("distributed", len(done)).Msg("Due dividends distributed")
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Time("next_run", s.cron.Entry(s.entry).Next).Msg("Dividend scheduler started")
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next reports the next scheduled run; zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}
