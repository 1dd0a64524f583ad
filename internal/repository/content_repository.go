package repository

import (
	"database/sql"

	"github.com/lib/pq"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

// ContentProviderInterface is the read-only view of the host CMS the
// aggregator consumes. Implementations return active items with active
// publications; window, override-bound and dedup predicates are applied
// by the aggregator itself so they live in testable code.
type ContentProviderInterface interface {
	AllCategories() ([]model.Category, error)
	WebpathNews(webpathID int) ([]model.PublicationContext, error)
	CalendarEvents(calendarID int) ([]model.CalendarEvent, error)
}

// ContentRepository reads the CMS tables directly.
type ContentRepository struct {
	DB *sql.DB
}

func (r *ContentRepository) AllCategories() ([]model.Category, error) {
	rows, err := r.DB.Query(`SELECT id, name FROM categories ORDER BY name`)
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

func (r *ContentRepository) WebpathNews(webpathID int) ([]model.PublicationContext, error) {
	query := `
        SELECT ctx.id, ctx.webpath_id, ctx.date_start, ctx.date_end, ctx.url, ctx.is_active,
               p.id, p.title, p.is_active,
               COALESCE(array_agg(pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
        FROM publication_contexts ctx
        JOIN publications p ON p.id = ctx.publication_id
        LEFT JOIN publication_categories pc ON pc.publication_id = p.id
        WHERE ctx.webpath_id=$1 AND ctx.is_active=TRUE AND p.is_active=TRUE
        GROUP BY ctx.id, ctx.webpath_id, ctx.date_start, ctx.date_end, ctx.url, ctx.is_active,
                 p.id, p.title, p.is_active
        ORDER BY ctx.date_start DESC, ctx.id
    `
	rows, err := r.DB.Query(query, webpathID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []model.PublicationContext{}
	for rows.Next() {
		var ctx model.PublicationContext
		var categoryIDs pq.Int64Array
		if err := rows.Scan(&ctx.ID, &ctx.WebpathID, &ctx.DateStart, &ctx.DateEnd,
			&ctx.URL, &ctx.IsActive, &ctx.Publication.ID, &ctx.Publication.Title,
			&ctx.Publication.IsActive, &categoryIDs); err != nil {
			return nil, err
		}
		ctx.Publication.CategoryIDs = toIntSlice(categoryIDs)
		items = append(items, ctx)
	}
	return items, rows.Err()
}

func (r *ContentRepository) CalendarEvents(calendarID int) ([]model.CalendarEvent, error) {
	query := `
        SELECT e.id, e.calendar_id, e.date_start, e.date_end, e.is_active,
               p.id, p.title, p.is_active,
               COALESCE(array_agg(pc.category_id) FILTER (WHERE pc.category_id IS NOT NULL), '{}')
        FROM calendar_events e
        JOIN publications p ON p.id = e.publication_id
        LEFT JOIN publication_categories pc ON pc.publication_id = p.id
        WHERE e.calendar_id=$1 AND e.is_active=TRUE AND p.is_active=TRUE
        GROUP BY e.id, e.calendar_id, e.date_start, e.date_end, e.is_active,
                 p.id, p.title, p.is_active
        ORDER BY e.date_start, e.id
    `
	rows, err := r.DB.Query(query, calendarID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.CalendarEvent{}
	for rows.Next() {
		var e model.CalendarEvent
		var categoryIDs pq.Int64Array
		if err := rows.Scan(&e.ID, &e.CalendarID, &e.DateStart, &e.DateEnd,
			&e.IsActive, &e.Publication.ID, &e.Publication.Title,
			&e.Publication.IsActive, &categoryIDs); err != nil {
			return nil, err
		}
		e.Publication.CategoryIDs = toIntSlice(categoryIDs)
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ ContentProviderInterface = (*ContentRepository)(nil)
