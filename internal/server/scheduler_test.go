package server

import (
	"io"
	"log"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/NabidKabir/kura-final-project/config"
	"github.com/NabidKabir/kura-final-project/internal/store"
)

func TestIsDue(t *testing.T) {
	// 03:30 on June 2nd; the "0 3 * * *" slot at 03:00 has passed.
	now := time.Date(2025, 6, 2, 3, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		cron string
		last time.Time
		want bool
	}{
		{"cron slot passed since last run", "0 3 * * *", now.Add(-2 * time.Hour), true},
		{"cron slot not reached yet", "0 3 * * *", now.Add(-10 * time.Minute), false},
		{"daily elapsed", "@daily", now.Add(-25 * time.Hour), true},
		{"daily not elapsed", "@daily", now.Add(-23 * time.Hour), false},
		{"hourly elapsed", "@hourly", now.Add(-61 * time.Minute), true},
		{"hourly not elapsed", "@hourly", now.Add(-59 * time.Minute), false},
		{"invalid cron degrades to daily", "not a cron", now.Add(-25 * time.Hour), true},
		{"invalid cron not due", "not a cron", now.Add(-time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := isDue(tc.cron, tc.last, now); got != tc.want {
				t.Fatalf("isDue(%q, last=%v) = %v, want %v", tc.cron, tc.last, got, tc.want)
			}
		})
	}
}

func TestPruneResults(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`DELETE FROM query_results`).
		WithArgs(30).
		WillReturnResult(sqlmock.NewResult(0, 12))

	s := &Scheduler{
		Cfg:    config.SchedulerConfig{RetentionDays: 30},
		Store:  &store.Store{DB: db},
		logger: log.New(io.Discard, "", 0),
	}
	s.pruneResults()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPruneResultsSkipsWithoutRetention(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	s := &Scheduler{
		Cfg:    config.SchedulerConfig{},
		Store:  &store.Store{DB: db},
		logger: log.New(io.Discard, "", 0),
	}
	s.pruneResults()

	// no retention window configured, so no statement may run
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSchedulerDisabledDoesNotStart(t *testing.T) {
	s := &Scheduler{
		Cfg:    config.SchedulerConfig{Enabled: false},
		Stop:   make(chan struct{}),
		logger: log.New(io.Discard, "", 0),
	}
	s.Start()
	// Start returns without spawning the ticker goroutine; nothing to
	// stop or wait for.
	close(s.Stop)
}
