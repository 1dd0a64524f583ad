package repository

import (
	"database/sql"
	"time"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

type NewsletterRepositoryInterface interface {
	Create(n *model.Newsletter) error
	Update(n *model.Newsletter) error
	GetByID(id int) (*model.Newsletter, error)
	// GetActiveBySlug returns only active newsletters; inactive ones
	// are invisible to the subscription flow.
	GetActiveBySlug(slug string) (*model.Newsletter, error)
	List(publicOnly bool) ([]model.Newsletter, error)
}

type NewsletterRepository struct {
	DB *sql.DB
}

const newsletterColumns = `id, name, slug, description, site_id, sender_address,
        is_subscriptable, is_public, is_active, created_at, updated_at`

func scanNewsletter(row interface{ Scan(...any) error }) (*model.Newsletter, error) {
	var n model.Newsletter
	err := row.Scan(&n.ID, &n.Name, &n.Slug, &n.Description, &n.SiteID,
		&n.SenderAddress, &n.IsSubscriptable, &n.IsPublic, &n.IsActive,
		&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NewsletterRepository) Create(n *model.Newsletter) error {
	n.CreatedAt = time.Now()
	query := `
        INSERT INTO newsletters
        (name, slug, description, site_id, sender_address, is_subscriptable, is_public, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id
    `
	return r.DB.QueryRow(query, n.Name, n.Slug, n.Description, n.SiteID,
		n.SenderAddress, n.IsSubscriptable, n.IsPublic, n.IsActive, n.CreatedAt).Scan(&n.ID)
}

func (r *NewsletterRepository) Update(n *model.Newsletter) error {
	query := `
        UPDATE newsletters
        SET name=$1, description=$2, sender_address=$3, is_subscriptable=$4,
            is_public=$5, is_active=$6, updated_at=NOW()
        WHERE id=$7
    `
	_, err := r.DB.Exec(query, n.Name, n.Description, n.SenderAddress,
		n.IsSubscriptable, n.IsPublic, n.IsActive, n.ID)
	return err
}

func (r *NewsletterRepository) GetByID(id int) (*model.Newsletter, error) {
	query := `SELECT ` + newsletterColumns + ` FROM newsletters WHERE id=$1`
	n, err := scanNewsletter(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNewsletterNotFound(id, "")
		}
		return nil, err
	}
	return n, nil
}

func (r *NewsletterRepository) GetActiveBySlug(slug string) (*model.Newsletter, error) {
	query := `SELECT ` + newsletterColumns + ` FROM newsletters WHERE slug=$1 AND is_active=TRUE`
	n, err := scanNewsletter(r.DB.QueryRow(query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewNewsletterNotFound(0, slug)
		}
		return nil, err
	}
	return n, nil
}

func (r *NewsletterRepository) List(publicOnly bool) ([]model.Newsletter, error) {
	query := `SELECT ` + newsletterColumns + ` FROM newsletters WHERE is_active=TRUE`
	if publicOnly {
		query += ` AND is_public=TRUE`
	}
	query += ` ORDER BY name`

	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	newsletters := []model.Newsletter{}
	for rows.Next() {
		n, err := scanNewsletter(rows)
		if err != nil {
			return nil, err
		}
		newsletters = append(newsletters, *n)
	}
	return newsletters, rows.Err()
}

var _ NewsletterRepositoryInterface = (*NewsletterRepository)(nil)
