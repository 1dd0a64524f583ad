// internal/model/subscription.go
package model

import "time"

// NewsletterSubscription is one recipient's relationship to a newsletter.
// (newsletter, email) is unique. The most recent of the two date fields
// determines whether the recipient is currently subscribed.
type NewsletterSubscription struct {
	ID                 int        `db:"id" json:"id"`
	NewsletterID       int        `db:"newsletter_id" json:"newsletter_id"`
	FirstName          string     `db:"first_name" json:"first_name"`
	LastName           string     `db:"last_name" json:"last_name"`
	Email              string     `db:"email" json:"email"`
	HTML               bool       `db:"html" json:"html"`
	DateSubscription   time.Time  `db:"date_subscription" json:"date_subscription"`
	DateUnsubscription *time.Time `db:"date_unsubscription" json:"date_unsubscription,omitempty"`
	Activable
	CreatedModifiedBy
}

// CurrentlySubscribed reports whether the subscription is in opt-in state.
func (s *NewsletterSubscription) CurrentlySubscribed() bool {
	if s.DateUnsubscription == nil {
		return true
	}
	return s.DateUnsubscription.Before(s.DateSubscription)
}

// TokenIsFresh reports whether a confirm token issued at the given time
// postdates the subscription's last recorded action. Older tokens are
// replays of links superseded by a newer subscribe/unsubscribe.
func (s *NewsletterSubscription) TokenIsFresh(issuedAt time.Time) bool {
	last := s.DateSubscription
	if s.DateUnsubscription != nil && s.DateUnsubscription.After(last) {
		last = *s.DateUnsubscription
	}
	return issuedAt.After(last)
}

// ValidSubscribers filters active subscriptions down to the ones
// currently in opt-in state.
func ValidSubscribers(subs []NewsletterSubscription) []NewsletterSubscription {
	valid := []NewsletterSubscription{}
	for _, s := range subs {
		if !s.IsActive {
			continue
		}
		if s.CurrentlySubscribed() {
			valid = append(valid, s)
		}
	}
	return valid
}

// NewsletterTestSubscription is an editor-managed recipient used for
// preview sends. It has no date fields and no opt-in flow.
type NewsletterTestSubscription struct {
	ID           int    `db:"id" json:"id"`
	NewsletterID int    `db:"newsletter_id" json:"newsletter_id"`
	FirstName    string `db:"first_name" json:"first_name"`
	LastName     string `db:"last_name" json:"last_name"`
	Email        string `db:"email" json:"email"`
	HTML         bool   `db:"html" json:"html"`
	Activable
	CreatedModifiedBy
}

// Recipient is the part of a subscription the send loop needs.
type Recipient struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	HTML      bool   `json:"html"`
}
