package repository

import (
	"database/sql"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

type SubscriptionRepositoryInterface interface {
	// GetByNewsletterAndEmail returns nil, nil when no subscription exists.
	GetByNewsletterAndEmail(newsletterID int, email string) (*model.NewsletterSubscription, error)
	Create(s *model.NewsletterSubscription) error
	Update(s *model.NewsletterSubscription) error
	// GetValidRecipients resolves the recipients of a send: test
	// subscribers when test is true, otherwise active subscriptions
	// currently in opt-in state.
	GetValidRecipients(newsletterID int, test bool) ([]model.Recipient, error)
}

type SubscriptionRepository struct {
	DB *sql.DB
}

func (r *SubscriptionRepository) GetByNewsletterAndEmail(newsletterID int, email string) (*model.NewsletterSubscription, error) {
	query := `
        SELECT id, newsletter_id, first_name, last_name, email, html,
               date_subscription, date_unsubscription, is_active
        FROM newsletter_subscriptions
        WHERE newsletter_id=$1 AND email=$2
    `
	var s model.NewsletterSubscription
	err := r.DB.QueryRow(query, newsletterID, email).Scan(
		&s.ID, &s.NewsletterID, &s.FirstName, &s.LastName, &s.Email, &s.HTML,
		&s.DateSubscription, &s.DateUnsubscription, &s.IsActive,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) Create(s *model.NewsletterSubscription) error {
	query := `
        INSERT INTO newsletter_subscriptions
        (newsletter_id, first_name, last_name, email, html, date_subscription, date_unsubscription, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `
	return r.DB.QueryRow(query, s.NewsletterID, s.FirstName, s.LastName,
		s.Email, s.HTML, s.DateSubscription, s.DateUnsubscription, s.IsActive).Scan(&s.ID)
}

func (r *SubscriptionRepository) Update(s *model.NewsletterSubscription) error {
	query := `
        UPDATE newsletter_subscriptions
        SET first_name=$1, last_name=$2, email=$3, html=$4,
            date_subscription=$5, date_unsubscription=$6, is_active=$7
        WHERE id=$8
    `
	_, err := r.DB.Exec(query, s.FirstName, s.LastName, s.Email, s.HTML,
		s.DateSubscription, s.DateUnsubscription, s.IsActive, s.ID)
	return err
}

// ListActive fetches active subscriptions; opt-in filtering happens in
// model.ValidSubscribers so the date comparison lives in one place.
func (r *SubscriptionRepository) ListActive(newsletterID int) ([]model.NewsletterSubscription, error) {
	query := `
        SELECT id, newsletter_id, first_name, last_name, email, html,
               date_subscription, date_unsubscription, is_active
        FROM newsletter_subscriptions
        WHERE newsletter_id=$1 AND is_active=TRUE
        ORDER BY last_name, first_name
    `
	rows, err := r.DB.Query(query, newsletterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	subs := []model.NewsletterSubscription{}
	for rows.Next() {
		var s model.NewsletterSubscription
		if err := rows.Scan(&s.ID, &s.NewsletterID, &s.FirstName, &s.LastName,
			&s.Email, &s.HTML, &s.DateSubscription, &s.DateUnsubscription,
			&s.IsActive); err != nil {
			return nil, err
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

func (r *SubscriptionRepository) listTestRecipients(newsletterID int) ([]model.Recipient, error) {
	query := `
        SELECT first_name, last_name, email, html
        FROM newsletter_test_subscriptions
        WHERE newsletter_id=$1 AND is_active=TRUE
        ORDER BY last_name, first_name
    `
	rows, err := r.DB.Query(query, newsletterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recipients := []model.Recipient{}
	for rows.Next() {
		var rec model.Recipient
		if err := rows.Scan(&rec.FirstName, &rec.LastName, &rec.Email, &rec.HTML); err != nil {
			return nil, err
		}
		recipients = append(recipients, rec)
	}
	return recipients, rows.Err()
}

func (r *SubscriptionRepository) GetValidRecipients(newsletterID int, test bool) ([]model.Recipient, error) {
	if test {
		return r.listTestRecipients(newsletterID)
	}

	subs, err := r.ListActive(newsletterID)
	if err != nil {
		return nil, err
	}

	recipients := []model.Recipient{}
	for _, s := range model.ValidSubscribers(subs) {
		recipients = append(recipients, model.Recipient{
			FirstName: s.FirstName,
			LastName:  s.LastName,
			Email:     s.Email,
			HTML:      s.HTML,
		})
	}
	return recipients, nil
}

var _ SubscriptionRepositoryInterface = (*SubscriptionRepository)(nil)
