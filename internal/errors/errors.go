// internal/errors/errors.go
package appErrors

import "fmt"

// AlreadySendingError signals the re-entrancy guard tripped: the
// message (or its test variant) already has a send in flight.
type AlreadySendingError struct {
	MessageID int
	Test      bool
}

func (e *AlreadySendingError) Error() string {
	if e.Test {
		return fmt.Sprintf("the test message %d is being sent, try later", e.MessageID)
	}
	return fmt.Sprintf("the message %d is being sent, try later", e.MessageID)
}

func NewAlreadySending(messageID int, test bool) error {
	return &AlreadySendingError{MessageID: messageID, Test: test}
}

// NotSubscribableError signals the newsletter does not accept
// subscriptions.
type NotSubscribableError struct {
	Newsletter string
}

func (e *NotSubscribableError) Error() string {
	return fmt.Sprintf("newsletter %q isn't subscriptable", e.Newsletter)
}

func NewNotSubscribable(newsletter string) error {
	return &NotSubscribableError{Newsletter: newsletter}
}

// InvalidSubscriptionStateError signals a subscribe/unsubscribe request
// that the current subscription state does not admit.
type InvalidSubscriptionStateError struct {
	Reason string
}

func (e *InvalidSubscriptionStateError) Error() string {
	return e.Reason
}

func NewInvalidSubscriptionState(reason string) error {
	return &InvalidSubscriptionStateError{Reason: reason}
}

// State-check reasons.
const (
	ReasonNotRegistered       = "this email address is not registered"
	ReasonDisabled            = "this subscription is invalid, contact our support"
	ReasonAlreadyUnsubscribed = "you're already unsubscribed from this newsletter"
	ReasonAlreadySubscribed   = "you're already subscribed to this newsletter"
)

// TokenExpiredError signals an expired or superseded confirm token.
type TokenExpiredError struct{}

func (e *TokenExpiredError) Error() string {
	return "token is expired"
}

func NewTokenExpired() error {
	return &TokenExpiredError{}
}

// NewsletterNotFoundError is a sentinel error
type NewsletterNotFoundError struct {
	Slug string
	ID   int
}

func (e *NewsletterNotFoundError) Error() string {
	if e.Slug != "" {
		return fmt.Sprintf("newsletter %q not found", e.Slug)
	}
	return fmt.Sprintf("newsletter with ID %d not found", e.ID)
}

func NewNewsletterNotFound(id int, slug string) error {
	return &NewsletterNotFoundError{ID: id, Slug: slug}
}

// MessageNotFoundError is a sentinel error
type MessageNotFoundError struct {
	MessageID int
}

func (e *MessageNotFoundError) Error() string {
	return fmt.Sprintf("message with ID %d not found", e.MessageID)
}

func NewMessageNotFound(id int) error {
	return &MessageNotFoundError{MessageID: id}
}
