package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

type MessageRepositoryInterface interface {
	// Message CRUD
	Create(m *model.Message) error
	Update(m *model.Message) error
	GetByID(id int) (*model.Message, error)
	ListMessages(offset, limit, newsletterID int) ([]*model.Message, int, error)
	// ListSendable returns the messages of active newsletters, the
	// population the scheduler tick iterates.
	ListSendable() ([]*model.Message, error)

	// In-flight and queued flags
	TryMarkSending(id int, test bool) (bool, error)
	ClearSending(id int, test bool) error
	MarkQueued(id int, test bool) error
	ClearQueued(id int, test bool) error

	// Message associations
	GetWebpaths(messageID int) ([]model.MessageWebpath, error)
	GetCategories(messageID int) ([]model.Category, error)
	GetPublications(messageID int) ([]model.Publication, error)
	GetPublicationContexts(messageID int, inEvidence bool) ([]model.MessagePublicationContext, error)
	GetCalendarContexts(messageID int) ([]model.MessageCalendarContext, error)
	GetAttachments(messageID int) ([]model.MessageAttachment, error)
}

type MessageRepository struct {
	DB *sql.DB
}

const messageColumns = `id, name, newsletter_id, group_by_categories, date_start, date_end,
        repeat_each, hour, banner, banner_url, intro_text, content, footer_text,
        template, queued_test, sending_test, queued, sending, week_days,
        discard_sent_news, is_active, created_at, updated_at`

func scanMessage(row interface{ Scan(...any) error }) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.Name, &m.NewsletterID, &m.GroupByCategories,
		&m.DateStart, &m.DateEnd, &m.RepeatEach, &m.Hour, &m.Banner,
		&m.BannerURL, &m.IntroText, &m.Content, &m.FooterText, &m.Template,
		&m.QueuedTest, &m.SendingTest, &m.Queued, &m.Sending, &m.WeekDays,
		&m.DiscardSentNews, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ====================== Message CRUD ======================

func (r *MessageRepository) Create(m *model.Message) error {
	m.CreatedAt = time.Now()
	query := `
        INSERT INTO messages
        (name, newsletter_id, group_by_categories, date_start, date_end, repeat_each,
         hour, banner, banner_url, intro_text, content, footer_text, template,
         week_days, discard_sent_news, is_active, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING id
    `
	return r.DB.QueryRow(query, m.Name, m.NewsletterID, m.GroupByCategories,
		m.DateStart, m.DateEnd, m.RepeatEach, m.Hour, m.Banner, m.BannerURL,
		m.IntroText, m.Content, m.FooterText, m.Template, m.WeekDays,
		m.DiscardSentNews, m.IsActive, m.CreatedAt).Scan(&m.ID)
}

func (r *MessageRepository) Update(m *model.Message) error {
	query := `
        UPDATE messages
        SET name=$1, group_by_categories=$2, date_start=$3, date_end=$4,
            repeat_each=$5, hour=$6, banner=$7, banner_url=$8, intro_text=$9,
            content=$10, footer_text=$11, template=$12, week_days=$13,
            discard_sent_news=$14, is_active=$15, updated_at=NOW()
        WHERE id=$16
    `
	_, err := r.DB.Exec(query, m.Name, m.GroupByCategories, m.DateStart,
		m.DateEnd, m.RepeatEach, m.Hour, m.Banner, m.BannerURL, m.IntroText,
		m.Content, m.FooterText, m.Template, m.WeekDays, m.DiscardSentNews,
		m.IsActive, m.ID)
	return err
}

func (r *MessageRepository) GetByID(id int) (*model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
	m, err := scanMessage(r.DB.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewMessageNotFound(id)
		}
		return nil, err
	}
	return m, nil
}

func (r *MessageRepository) ListMessages(offset, limit, newsletterID int) ([]*model.Message, int, error) {
	messages := []*model.Message{}
	query := `SELECT ` + messageColumns + ` FROM messages WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if newsletterID != 0 {
		query += fmt.Sprintf(" AND newsletter_id=$%d", argPos)
		args = append(args, newsletterID)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, m)
	}

	countQuery := `SELECT COUNT(*) FROM messages WHERE 1=1`
	argsCount := []interface{}{}
	if newsletterID != 0 {
		countQuery += ` AND newsletter_id=$1`
		argsCount = append(argsCount, newsletterID)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *MessageRepository) ListSendable() ([]*model.Message, error) {
	query := `
        SELECT ` + qualify(messageColumns, "m") + `
        FROM messages m
        JOIN newsletters n ON n.id = m.newsletter_id
        WHERE n.is_active=TRUE
        ORDER BY m.id
    `
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// ====================== Flags ======================

func sendingColumn(test bool) string {
	if test {
		return "sending_test"
	}
	return "sending"
}

func queuedColumn(test bool) string {
	if test {
		return "queued_test"
	}
	return "queued"
}

// TryMarkSending atomically sets the in-flight flag, returning false
// when another send already holds it. The conditional UPDATE closes the
// check-then-set race between overlapping callers.
func (r *MessageRepository) TryMarkSending(id int, test bool) (bool, error) {
	col := sendingColumn(test)
	query := fmt.Sprintf(
		`UPDATE messages SET %s=TRUE, updated_at=NOW() WHERE id=$1 AND %s=FALSE`,
		col, col)
	res, err := r.DB.Exec(query, id)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *MessageRepository) ClearSending(id int, test bool) error {
	query := fmt.Sprintf(
		`UPDATE messages SET %s=FALSE, updated_at=NOW() WHERE id=$1`,
		sendingColumn(test))
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *MessageRepository) MarkQueued(id int, test bool) error {
	query := fmt.Sprintf(
		`UPDATE messages SET %s=TRUE, updated_at=NOW() WHERE id=$1`,
		queuedColumn(test))
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *MessageRepository) ClearQueued(id int, test bool) error {
	query := fmt.Sprintf(
		`UPDATE messages SET %s=FALSE, updated_at=NOW() WHERE id=$1`,
		queuedColumn(test))
	_, err := r.DB.Exec(query, id)
	return err
}

// ====================== Associations ======================

func (r *MessageRepository) GetWebpaths(messageID int) ([]model.MessageWebpath, error) {
	query := `
        SELECT mw.id, mw.message_id, mw.news_from, mw.news_to, mw.is_active,
               w.id, w.name, w.full_path, w.site_id, w.is_active
        FROM message_webpaths mw
        JOIN webpaths w ON w.id = mw.webpath_id
        WHERE mw.message_id=$1 AND mw.is_active=TRUE
        ORDER BY w.name
    `
	rows, err := r.DB.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	webpaths := []model.MessageWebpath{}
	for rows.Next() {
		var mw model.MessageWebpath
		if err := rows.Scan(&mw.ID, &mw.MessageID, &mw.NewsFrom, &mw.NewsTo,
			&mw.IsActive, &mw.Webpath.ID, &mw.Webpath.Name,
			&mw.Webpath.FullPath, &mw.Webpath.SiteID, &mw.Webpath.IsActive); err != nil {
			return nil, err
		}
		webpaths = append(webpaths, mw)
	}
	return webpaths, rows.Err()
}

func (r *MessageRepository) GetCategories(messageID int) ([]model.Category, error) {
	query := `
        SELECT c.id, c.name
        FROM message_publication_categories mpc
        JOIN categories c ON c.id = mpc.category_id
        WHERE mpc.message_id=$1 AND mpc.is_active=TRUE
        ORDER BY mpc.ord, c.name
    `
	rows, err := r.DB.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []model.Category{}
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *MessageRepository) GetPublications(messageID int) ([]model.Publication, error) {
	query := `
        SELECT p.id, p.title, p.is_active,
               COALESCE(array_agg(pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
        FROM message_publications mp
        JOIN publications p ON p.id = mp.publication_id
        LEFT JOIN publication_categories pc ON pc.publication_id = p.id
        WHERE mp.message_id=$1 AND mp.is_active=TRUE
        GROUP BY p.id, p.title, p.is_active, mp.ord
        ORDER BY mp.ord, p.title
    `
	rows, err := r.DB.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	publications := []model.Publication{}
	for rows.Next() {
		var p model.Publication
		var categoryIDs pq.Int64Array
		if err := rows.Scan(&p.ID, &p.Title, &p.IsActive, &categoryIDs); err != nil {
			return nil, err
		}
		p.CategoryIDs = toIntSlice(categoryIDs)
		publications = append(publications, p)
	}
	return publications, rows.Err()
}

func (r *MessageRepository) GetPublicationContexts(messageID int, inEvidence bool) ([]model.MessagePublicationContext, error) {
	query := `
        SELECT mpc.id, mpc.message_id, mpc.in_evidence, mpc.ord, mpc.is_active,
               ctx.id, ctx.webpath_id, ctx.date_start, ctx.date_end, ctx.url, ctx.is_active,
               p.id, p.title, p.is_active,
               COALESCE(array_agg(pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
        FROM message_publication_contexts mpc
        JOIN publication_contexts ctx ON ctx.id = mpc.publication_context_id
        JOIN publications p ON p.id = ctx.publication_id
        LEFT JOIN publication_categories pc ON pc.publication_id = p.id
        WHERE mpc.message_id=$1 AND mpc.is_active=TRUE AND mpc.in_evidence=$2
        GROUP BY mpc.id, mpc.message_id, mpc.in_evidence, mpc.ord, mpc.is_active,
                 ctx.id, ctx.webpath_id, ctx.date_start, ctx.date_end, ctx.url, ctx.is_active,
                 p.id, p.title, p.is_active
        ORDER BY mpc.ord, p.title
    `
	rows, err := r.DB.Query(query, messageID, inEvidence)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contexts := []model.MessagePublicationContext{}
	for rows.Next() {
		var mpc model.MessagePublicationContext
		var categoryIDs pq.Int64Array
		if err := rows.Scan(&mpc.ID, &mpc.MessageID, &mpc.InEvidence, &mpc.Order,
			&mpc.IsActive, &mpc.Publication.ID, &mpc.Publication.WebpathID,
			&mpc.Publication.DateStart, &mpc.Publication.DateEnd,
			&mpc.Publication.URL, &mpc.Publication.IsActive,
			&mpc.Publication.Publication.ID, &mpc.Publication.Publication.Title,
			&mpc.Publication.Publication.IsActive, &categoryIDs); err != nil {
			return nil, err
		}
		mpc.Publication.Publication.CategoryIDs = toIntSlice(categoryIDs)
		contexts = append(contexts, mpc)
	}
	return contexts, rows.Err()
}

func (r *MessageRepository) GetCalendarContexts(messageID int) ([]model.MessageCalendarContext, error) {
	query := `
        SELECT mcc.id, mcc.message_id, mcc.events_from, mcc.events_to, mcc.is_active,
               cc.id, cc.is_active,
               cal.id, cal.name, cal.is_active,
               w.id, w.name, w.full_path, w.site_id, w.is_active
        FROM message_calendar_contexts mcc
        JOIN calendar_contexts cc ON cc.id = mcc.calendar_context_id
        JOIN calendars cal ON cal.id = cc.calendar_id
        JOIN webpaths w ON w.id = cc.webpath_id
        WHERE mcc.message_id=$1 AND mcc.is_active=TRUE
        ORDER BY cc.id
    `
	rows, err := r.DB.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contexts := []model.MessageCalendarContext{}
	for rows.Next() {
		var mcc model.MessageCalendarContext
		if err := rows.Scan(&mcc.ID, &mcc.MessageID, &mcc.EventsFrom,
			&mcc.EventsTo, &mcc.IsActive,
			&mcc.CalendarContext.ID, &mcc.CalendarContext.IsActive,
			&mcc.CalendarContext.Calendar.ID, &mcc.CalendarContext.Calendar.Name,
			&mcc.CalendarContext.Calendar.IsActive,
			&mcc.CalendarContext.Webpath.ID, &mcc.CalendarContext.Webpath.Name,
			&mcc.CalendarContext.Webpath.FullPath, &mcc.CalendarContext.Webpath.SiteID,
			&mcc.CalendarContext.Webpath.IsActive); err != nil {
			return nil, err
		}
		contexts = append(contexts, mcc)
	}
	return contexts, rows.Err()
}

func (r *MessageRepository) GetAttachments(messageID int) ([]model.MessageAttachment, error) {
	query := `
        SELECT id, message_id, attachment, ord, is_active
        FROM message_attachments
        WHERE message_id=$1 AND is_active=TRUE
        ORDER BY ord
    `
	rows, err := r.DB.Query(query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attachments := []model.MessageAttachment{}
	for rows.Next() {
		var a model.MessageAttachment
		if err := rows.Scan(&a.ID, &a.MessageID, &a.Attachment, &a.Order, &a.IsActive); err != nil {
			return nil, err
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

var _ MessageRepositoryInterface = (*MessageRepository)(nil)
