// internal/model/content.go
package model

import "time"

// Mirror types for the host CMS content read by the aggregator.
// The CMS owns these tables; this service only queries them.

type Category struct {
	ID   int    `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

type Publication struct {
	ID          int    `db:"id" json:"id"`
	Title       string `db:"title" json:"title"`
	IsActive    bool   `db:"is_active" json:"is_active"`
	CategoryIDs []int  `db:"-" json:"category_ids"`
}

// HasCategory reports whether the publication belongs to the category.
func (p *Publication) HasCategory(categoryID int) bool {
	for _, id := range p.CategoryIDs {
		if id == categoryID {
			return true
		}
	}
	return false
}

// Webpath is a site section content items are published under.
type Webpath struct {
	ID       int    `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	FullPath string `db:"full_path" json:"full_path"`
	SiteID   int    `db:"site_id" json:"site_id"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// PublicationContext is a publication placed under a webpath with its
// own visibility window.
type PublicationContext struct {
	ID          int         `db:"id" json:"id"`
	Publication Publication `json:"publication"`
	WebpathID   int         `db:"webpath_id" json:"webpath_id"`
	DateStart   time.Time   `db:"date_start" json:"date_start"`
	DateEnd     time.Time   `db:"date_end" json:"date_end"`
	URL         string      `db:"url" json:"url"`
	IsActive    bool        `db:"is_active" json:"is_active"`
}

type Calendar struct {
	ID       int    `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// CalendarContext is a calendar placed under a webpath.
type CalendarContext struct {
	ID       int      `db:"id" json:"id"`
	Calendar Calendar `json:"calendar"`
	Webpath  Webpath  `json:"webpath"`
	IsActive bool     `db:"is_active" json:"is_active"`
}

type CalendarEvent struct {
	ID          int         `db:"id" json:"id"`
	CalendarID  int         `db:"calendar_id" json:"calendar_id"`
	Publication Publication `json:"publication"`
	DateStart   time.Time   `db:"date_start" json:"date_start"`
	DateEnd     time.Time   `db:"date_end" json:"date_end"`
	IsActive    bool        `db:"is_active" json:"is_active"`
}
