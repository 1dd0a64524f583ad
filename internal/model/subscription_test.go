package model_test

import (
	"testing"
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

func TestCurrentlySubscribed(t *testing.T) {
	sub := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	before := sub.AddDate(0, 0, -5)
	after := sub.AddDate(0, 0, 5)

	cases := []struct {
		name     string
		unsub    *time.Time
		expected bool
	}{
		{"never unsubscribed", nil, true},
		{"unsubscribed then resubscribed", &before, true},
		{"unsubscribed after subscribing", &after, false},
	}

	for _, c := range cases {
		s := model.NewsletterSubscription{
			DateSubscription:   sub,
			DateUnsubscription: c.unsub,
		}
		if s.CurrentlySubscribed() != c.expected {
			t.Errorf("%s: expected %v", c.name, c.expected)
		}
	}
}

func TestTokenIsFresh(t *testing.T) {
	sub := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	unsub := sub.AddDate(0, 0, 5)

	s := model.NewsletterSubscription{
		DateSubscription:   sub,
		DateUnsubscription: &unsub,
	}

	if s.TokenIsFresh(sub.AddDate(0, 0, 1)) {
		t.Error("token issued before the unsubscription must be stale")
	}
	if !s.TokenIsFresh(unsub.Add(time.Minute)) {
		t.Error("token issued after the last action should be fresh")
	}
}

func TestValidSubscribers(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	earlier := now.AddDate(0, -1, 0)

	active := model.NewsletterSubscription{Email: "a@example.org", DateSubscription: now}
	active.IsActive = true

	disabled := model.NewsletterSubscription{Email: "b@example.org", DateSubscription: now}

	optedOut := model.NewsletterSubscription{
		Email: "c@example.org", DateSubscription: earlier, DateUnsubscription: &now,
	}
	optedOut.IsActive = true

	valid := model.ValidSubscribers([]model.NewsletterSubscription{active, disabled, optedOut})
	if len(valid) != 1 || valid[0].Email != "a@example.org" {
		t.Errorf("expected only the active opt-in subscriber, got %+v", valid)
	}
}
