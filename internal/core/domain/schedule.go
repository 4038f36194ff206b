package domain

import "time"

// ScheduledSync re-runs a collection's sync on a fixed interval
type ScheduledSync struct {
	Collection string        `json:"collection" mapstructure:"collection"`
	Mode       SyncMode      `json:"mode" mapstructure:"mode"`
	Interval   time.Duration `json:"interval" mapstructure:"interval"`
	Limit      int           `json:"limit,omitempty" mapstructure:"limit"`
	MaxPages   int           `json:"max_pages,omitempty" mapstructure:"max_pages"`

	LastRun   *time.Time `json:"last_run,omitempty" mapstructure:"-"`
	NextRun   time.Time  `json:"next_run" mapstructure:"-"`
	LastError string     `json:"last_error,omitempty" mapstructure:"-"`
}

// IsDue returns true if the schedule should run now
func (s *ScheduledSync) IsDue(now time.Time) bool {
	return !now.Before(s.NextRun)
}

// MarkRun records an enqueue attempt and computes the next run time
func (s *ScheduledSync) MarkRun(now time.Time, err error) {
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
	s.LastError = ""
	if err != nil {
		s.LastError = err.Error()
	}
}

// Request builds the sync request for one scheduled run
func (s *ScheduledSync) Request() SyncRequest {
	return SyncRequest{
		Collection: s.Collection,
		Mode:       s.Mode,
		Limit:      s.Limit,
		MaxPages:   s.MaxPages,
	}
}
