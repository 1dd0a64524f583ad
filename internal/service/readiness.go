// internal/service/readiness.go
package service

import (
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
)

// ReadinessEvaluator decides whether a message is due to go out now.
// The expected caller is an hourly scheduler tick; the hour gate picks
// which tick fires.
type ReadinessEvaluator struct {
	Sendings repository.SendingRepositoryInterface
	Now      func() time.Time
}

func NewReadinessEvaluator(sendings repository.SendingRepositoryInterface) *ReadinessEvaluator {
	return &ReadinessEvaluator{
		Sendings: sendings,
		Now:      time.Now,
	}
}

// IsReady reports whether a send (normal or test) may start now.
//
// Test sends are never time-gated: they fire only on the queued_test
// flag, and never while a test send is in flight.
//
// Normal sends check, in order: in-flight guard, manual queued
// override, active flag, scheduling window, week-day set, exact-hour
// gate, and the repeat-interval rule against the last sending record
// (nil = ignore history, 0 = once ever, n = every n days).
func (e *ReadinessEvaluator) IsReady(m *model.Message, test bool) (bool, error) {
	if test {
		if m.SendingTest {
			return false, nil
		}
		return m.QueuedTest, nil
	}

	// the message is being sent
	if m.Sending {
		return false, nil
	}
	// manual sending
	if m.Queued {
		return true, nil
	}
	if !m.IsActive {
		return false, nil
	}

	now := e.Now()
	if !m.IsInProgress(now) {
		return false, nil
	}
	if !m.AllowsWeekday(now) {
		return false, nil
	}
	// to work properly the cronjob must be executed every hour
	if m.Hour != nil && now.Hour() != *m.Hour {
		return false, nil
	}

	if m.RepeatEach == nil {
		return true, nil
	}
	last, err := e.Sendings.GetLast(m.ID)
	if err != nil {
		return false, err
	}
	if last == nil {
		return true, nil
	}
	if *m.RepeatEach == 0 {
		return false, nil
	}
	next := last.Date.AddDate(0, 0, *m.RepeatEach)
	return !now.Before(next), nil
}
