package repository

import (
	"database/sql"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

type SendingRepositoryInterface interface {
	Create(s *model.MessageSending) error
	// GetLast returns the most recent sending record for a message,
	// or nil, nil when the message was never sent.
	GetLast(messageID int) (*model.MessageSending, error)
	ListByMessage(messageID int) ([]model.MessageSending, error)
}

type SendingRepository struct {
	DB *sql.DB
}

func (r *SendingRepository) Create(s *model.MessageSending) error {
	query := `
        INSERT INTO message_sendings (message_id, date, html_file, recipients)
        VALUES ($1, $2, $3, $4)
        RETURNING id
    `
	return r.DB.QueryRow(query, s.MessageID, s.Date, s.HTMLFile, s.Recipients).Scan(&s.ID)
}

func (r *SendingRepository) GetLast(messageID int) (*model.MessageSending, error) {
	query := `
        SELECT id, message_id, date, html_file, recipients
        FROM message_sendings
        WHERE message_id=$1
        ORDER BY date DESC
        LIMIT 1
    `
	var s model.MessageSending
	err := r.DB.QueryRow(query, messageID).Scan(&s.ID, &s.MessageID, &s.Date,
		&s.HTMLFile, &s.Recipients)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *SendingRepository) ListByMessage(messageID int) ([]model.MessageSending, error) {
	query := `
        SELECT id, message_id, date, html_file, recipients
        FROM message_sendings
        WHERE message_id=$1
        ORDER BY date DESC
    `
	rows, err := r.DB.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sendings := []model.MessageSending{}
	for rows.Next() {
		var s model.MessageSending
		if err := rows.Scan(&s.ID, &s.MessageID, &s.Date, &s.HTMLFile, &s.Recipients); err != nil {
			return nil, err
		}
		sendings = append(sendings, s)
	}
	return sendings, rows.Err()
}

var _ SendingRepositoryInterface = (*SendingRepository)(nil)
