// internal/model/message.go
package model

import (
	"strconv"
	"strings"
	"time"
)

// Message is one composable newsletter issue.
//
// Sending/SendingTest are in-flight guards, true only while a send is
// running. Queued/QueuedTest mark a manual send deferred to the next
// scheduler tick because the recipient count exceeded the manual
// threshold. Flags transition only inside the send pipeline.
type Message struct {
	ID                int        `db:"id" json:"id"`
	Name              string     `db:"name" json:"name"`
	NewsletterID      int        `db:"newsletter_id" json:"newsletter_id"`
	GroupByCategories bool       `db:"group_by_categories" json:"group_by_categories"`
	DateStart         *time.Time `db:"date_start" json:"date_start,omitempty"`
	DateEnd           *time.Time `db:"date_end" json:"date_end,omitempty"`
	RepeatEach        *int       `db:"repeat_each" json:"repeat_each,omitempty"` // days; nil = when due, 0 = once ever
	Hour              *int       `db:"hour" json:"hour,omitempty"`               // 0-23, exact match under an hourly cron
	Banner            string     `db:"banner" json:"banner"`
	BannerURL         string     `db:"banner_url" json:"banner_url"`
	IntroText         string     `db:"intro_text" json:"intro_text"`
	Content           string     `db:"content" json:"content"`
	FooterText        string     `db:"footer_text" json:"footer_text"`
	Template          string     `db:"template" json:"template"`
	QueuedTest        bool       `db:"queued_test" json:"queued_test"`
	SendingTest       bool       `db:"sending_test" json:"sending_test"`
	Queued            bool       `db:"queued" json:"queued"`
	Sending           bool       `db:"sending" json:"sending"`
	WeekDays          string     `db:"week_days" json:"week_days"` // csv, 0=Monday .. 6=Sunday
	DiscardSentNews   bool       `db:"discard_sent_news" json:"discard_sent_news"`
	Activable
	TimeStamped
	CreatedModifiedBy
}

// IsInProgress reports whether now falls inside [date_start, date_end).
// Either bound missing means the message is never in progress.
func (m *Message) IsInProgress(now time.Time) bool {
	if m.DateStart == nil || m.DateEnd == nil {
		return false
	}
	return !now.Before(*m.DateStart) && now.Before(*m.DateEnd)
}

// AllowsWeekday reports whether the week-day restriction, if any,
// admits now. Days are numbered 0=Monday..6=Sunday.
func (m *Message) AllowsWeekday(now time.Time) bool {
	if m.WeekDays == "" {
		return true
	}
	day := (int(now.Weekday()) + 6) % 7
	for _, field := range strings.Split(m.WeekDays, ",") {
		if d, err := strconv.Atoi(strings.TrimSpace(field)); err == nil && d == day {
			return true
		}
	}
	return false
}

// MessageWebpath associates a message with a site section to pull
// time-windowed news from. Unique per (message, webpath).
type MessageWebpath struct {
	ID        int        `db:"id" json:"id"`
	MessageID int        `db:"message_id" json:"message_id"`
	Webpath   Webpath    `json:"webpath"`
	NewsFrom  *time.Time `db:"news_from" json:"news_from,omitempty"`
	NewsTo    *time.Time `db:"news_to" json:"news_to,omitempty"`
	Activable
}

// MessagePublication is an explicitly attached single publication.
type MessagePublication struct {
	ID          int         `db:"id" json:"id"`
	MessageID   int         `db:"message_id" json:"message_id"`
	Publication Publication `json:"publication"`
	Sortable
	Activable
}

// MessagePublicationContext is an explicit content item, optionally
// featured ("in evidence"). Unique per (message, publication context).
type MessagePublicationContext struct {
	ID          int                `db:"id" json:"id"`
	MessageID   int                `db:"message_id" json:"message_id"`
	Publication PublicationContext `json:"publication"`
	InEvidence  bool               `db:"in_evidence" json:"in_evidence"`
	Sortable
	Activable
}

// MessagePublicationCategory is an explicit category filter on a message.
type MessagePublicationCategory struct {
	ID        int      `db:"id" json:"id"`
	MessageID int      `db:"message_id" json:"message_id"`
	Category  Category `json:"category"`
	Sortable
	Activable
}

// MessageCalendarContext pulls events from a calendar context, with its
// own optional bounds.
type MessageCalendarContext struct {
	ID              int             `db:"id" json:"id"`
	MessageID       int             `db:"message_id" json:"message_id"`
	CalendarContext CalendarContext `json:"calendar_context"`
	EventsFrom      *time.Time      `db:"events_from" json:"events_from,omitempty"`
	EventsTo        *time.Time      `db:"events_to" json:"events_to,omitempty"`
	Activable
}

// MessageAttachment is an ordered file attachment on a message. The
// path is relative to the media root.
type MessageAttachment struct {
	ID         int    `db:"id" json:"id"`
	MessageID  int    `db:"message_id" json:"message_id"`
	Attachment string `db:"attachment" json:"attachment"`
	Sortable
	Activable
}

// MessageSending is the immutable record of one completed non-test
// send: timestamp, recipient count and the rendered HTML artifact that
// went out. It is the sole state the repeat-interval rule reads.
type MessageSending struct {
	ID         int       `db:"id" json:"id"`
	MessageID  int       `db:"message_id" json:"message_id"`
	Date       time.Time `db:"date" json:"date"`
	HTMLFile   string    `db:"html_file" json:"html_file"`
	Recipients int       `db:"recipients" json:"recipients"`
}
