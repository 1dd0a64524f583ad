// internal/service/subscription.go
package service

import (
	"fmt"
	"net/url"
	"time"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/mailer"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/token"
)

// SubscriptionService implements the double opt-in and opt-out flows:
// a request emails a signed confirm link, following the link applies
// the change. No subscription state moves without a confirmed token.
type SubscriptionService struct {
	Newsletters   repository.NewsletterRepositoryInterface
	Subscriptions repository.SubscriptionRepositoryInterface
	Tokens        *token.Manager
	Mailer        mailer.Sender
	BaseURL       string
	FromEmail     string
	Now           func() time.Time
}

func NewSubscriptionService(newsletters repository.NewsletterRepositoryInterface,
	subscriptions repository.SubscriptionRepositoryInterface,
	tokens *token.Manager,
	sender mailer.Sender,
	baseURL, fromEmail string) *SubscriptionService {
	return &SubscriptionService{
		Newsletters:   newsletters,
		Subscriptions: subscriptions,
		Tokens:        tokens,
		Mailer:        sender,
		BaseURL:       baseURL,
		FromEmail:     fromEmail,
		Now:           time.Now,
	}
}

// SubscribeRequest is the form payload of both flows.
type SubscribeRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	HTML      bool   `json:"html"`
}

// RequestSubscribe mails a subscribe confirm link for the newsletter.
func (s *SubscriptionService) RequestSubscribe(slug string, req SubscribeRequest) error {
	return s.request(slug, req, true)
}

// RequestUnsubscribe mails an unsubscribe confirm link.
func (s *SubscriptionService) RequestUnsubscribe(slug string, req SubscribeRequest) error {
	return s.request(slug, req, false)
}

func (s *SubscriptionService) request(slug string, req SubscribeRequest, subscribing bool) error {
	newsletter, err := s.Newsletters.GetActiveBySlug(slug)
	if err != nil {
		return err
	}
	if !newsletter.IsSubscriptable {
		return appErrors.NewNotSubscribable(newsletter.Name)
	}

	sub, err := s.Subscriptions.GetByNewsletterAndEmail(newsletter.ID, req.Email)
	if err != nil {
		return err
	}
	if err := checkSubscription(sub, subscribing); err != nil {
		return err
	}

	tok, err := s.Tokens.Issue(token.Claims{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		HTML:         req.HTML,
		NewsletterID: newsletter.ID,
	})
	if err != nil {
		return err
	}

	action := "unsubscribe"
	if subscribing {
		action = "subscribe"
	}
	link := fmt.Sprintf("%s/newsletters/%s/confirm?d=%s",
		s.BaseURL, action, url.QueryEscape(tok))

	body := fmt.Sprintf(
		"Please confirm your request to %s %q by following this link:\n\n%s\n\n"+
			"If you didn't submit this request, ignore this email.",
		action, newsletter.Name, link)

	return s.Mailer.Send(mailer.OutgoingMail{
		To:      req.Email,
		From:    newsletter.FromAddress(s.FromEmail),
		Subject: fmt.Sprintf("%s - confirm your request", newsletter.Name),
		Text:    body,
	})
}

// ConfirmSubscribe applies a subscribe confirm token: it creates the
// subscription, or refreshes an existing one back into opt-in state.
func (s *SubscriptionService) ConfirmSubscribe(rawToken string) (*model.Newsletter, error) {
	claims, newsletter, sub, err := s.resolve(rawToken)
	if err != nil {
		return nil, err
	}
	if !newsletter.IsSubscriptable {
		return nil, appErrors.NewNotSubscribable(newsletter.Name)
	}
	if err := checkSubscription(sub, true); err != nil {
		return nil, err
	}

	now := s.Now()
	if sub == nil {
		sub = &model.NewsletterSubscription{
			NewsletterID:     newsletter.ID,
			FirstName:        claims.FirstName,
			LastName:         claims.LastName,
			Email:            claims.Email,
			HTML:             claims.HTML,
			DateSubscription: now,
		}
		sub.IsActive = true
		if err := s.Subscriptions.Create(sub); err != nil {
			return nil, err
		}
		return newsletter, nil
	}

	if !sub.TokenIsFresh(claims.IssuedAt.Time) {
		return nil, appErrors.NewTokenExpired()
	}
	sub.FirstName = claims.FirstName
	sub.LastName = claims.LastName
	sub.HTML = claims.HTML
	sub.DateSubscription = now
	if err := s.Subscriptions.Update(sub); err != nil {
		return nil, err
	}
	return newsletter, nil
}

// ConfirmUnsubscribe applies an unsubscribe confirm token.
func (s *SubscriptionService) ConfirmUnsubscribe(rawToken string) (*model.Newsletter, error) {
	claims, newsletter, sub, err := s.resolve(rawToken)
	if err != nil {
		return nil, err
	}
	if err := checkSubscription(sub, false); err != nil {
		return nil, err
	}
	if !sub.TokenIsFresh(claims.IssuedAt.Time) {
		return nil, appErrors.NewTokenExpired()
	}

	now := s.Now()
	sub.DateUnsubscription = &now
	if err := s.Subscriptions.Update(sub); err != nil {
		return nil, err
	}
	return newsletter, nil
}

// resolve parses the token and loads the newsletter and, when present,
// the addressed subscription.
func (s *SubscriptionService) resolve(rawToken string) (*token.Claims, *model.Newsletter, *model.NewsletterSubscription, error) {
	claims, err := s.Tokens.Parse(rawToken)
	if err != nil {
		return nil, nil, nil, err
	}

	newsletter, err := s.Newsletters.GetByID(claims.NewsletterID)
	if err != nil {
		return nil, nil, nil, err
	}
	if !newsletter.IsActive {
		return nil, nil, nil, appErrors.NewNewsletterNotFound(newsletter.ID, "")
	}

	sub, err := s.Subscriptions.GetByNewsletterAndEmail(newsletter.ID, claims.Email)
	if err != nil {
		return nil, nil, nil, err
	}
	return claims, newsletter, sub, nil
}

// checkSubscription validates the requested action against the current
// subscription state. A nil sub means the address was never registered.
func checkSubscription(sub *model.NewsletterSubscription, subscribing bool) error {
	if sub == nil {
		if subscribing {
			return nil
		}
		return appErrors.NewInvalidSubscriptionState(appErrors.ReasonNotRegistered)
	}
	if !sub.IsActive {
		return appErrors.NewInvalidSubscriptionState(appErrors.ReasonDisabled)
	}
	if sub.CurrentlySubscribed() {
		if subscribing {
			return appErrors.NewInvalidSubscriptionState(appErrors.ReasonAlreadySubscribed)
		}
		return nil
	}
	if subscribing {
		return nil
	}
	return appErrors.NewInvalidSubscriptionState(appErrors.ReasonAlreadyUnsubscribed)
}
