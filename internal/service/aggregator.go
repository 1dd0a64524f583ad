// internal/service/aggregator.go
package service

import (
	"sort"
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
)

// ContentBundle is the payload a message template renders. Webpath news
// land in NewsByCategory when the message groups by category, in
// FreeNews otherwise.
type ContentBundle struct {
	Banner            string                                `json:"banner"`
	BannerURL         string                                `json:"banner_url"`
	Content           string                                `json:"content"`
	IntroText         string                                `json:"intro_text"`
	FooterText        string                                `json:"footer_text"`
	GroupByCategories bool                                  `json:"group_by_categories"`
	Newsletter        *model.Newsletter                     `json:"newsletter,omitempty"`
	NewsByCategory    map[string][]model.PublicationContext `json:"webpath_news,omitempty"`
	FreeNews          []model.PublicationContext            `json:"free_news,omitempty"`
	Evidence          []model.PublicationContext            `json:"news_in_evidence"`
	Publications      []model.Publication                   `json:"publications"`
	SingleNews        []model.PublicationContext            `json:"single_news"`
	CalendarEvents    map[string][]model.CalendarEvent      `json:"calendar_events"`
	Test              bool                                  `json:"test"`
}

// HasContent reports whether the bundle is worth sending.
func (b *ContentBundle) HasContent() bool {
	return b.Content != "" ||
		b.IntroText != "" ||
		len(b.Evidence) > 0 ||
		len(b.Publications) > 0 ||
		len(b.SingleNews) > 0 ||
		len(b.NewsByCategory) > 0 ||
		len(b.FreeNews) > 0 ||
		len(b.CalendarEvents) > 0
}

// ContentAggregator assembles a message's content payload from the
// configured webpaths, explicit items and calendar contexts.
type ContentAggregator struct {
	Messages repository.MessageRepositoryInterface
	Sendings repository.SendingRepositoryInterface
	Content  repository.ContentProviderInterface
	Config   config.NewsletterConfig
	Now      func() time.Time
}

func NewContentAggregator(messages repository.MessageRepositoryInterface,
	sendings repository.SendingRepositoryInterface,
	content repository.ContentProviderInterface,
	cfg config.NewsletterConfig) *ContentAggregator {
	return &ContentAggregator{
		Messages: messages,
		Sendings: sendings,
		Content:  content,
		Config:   cfg,
		Now:      time.Now,
	}
}

// PrepareData collects and deduplicates the message's content.
//
// Explicitly featured items take priority: per category, evidence
// claims publication ids first, then single news, and the webpath-news
// pools exclude every claimed id. Editors expect a featured item to
// appear exactly once, in its featured slot, even when a category pool
// would also have surfaced it.
func (a *ContentAggregator) PrepareData(m *model.Message, test bool) (*ContentBundle, error) {
	now := a.Now()

	categories, curated, err := a.categories(m)
	if err != nil {
		return nil, err
	}

	pool, err := a.collectWebpathNews(m, now)
	if err != nil {
		return nil, err
	}

	evidence, err := a.Messages.GetPublicationContexts(m.ID, true)
	if err != nil {
		return nil, err
	}
	singles, err := a.Messages.GetPublicationContexts(m.ID, false)
	if err != nil {
		return nil, err
	}
	publications, err := a.Messages.GetPublications(m.ID)
	if err != nil {
		return nil, err
	}

	calendarEvents, err := a.collectCalendarEvents(m, now)
	if err != nil {
		return nil, err
	}

	bundle := &ContentBundle{
		Banner:            m.Banner,
		BannerURL:         m.BannerURL,
		Content:           m.Content,
		IntroText:         m.IntroText,
		FooterText:        m.FooterText,
		GroupByCategories: m.GroupByCategories,
		Publications:      publications,
		CalendarEvents:    calendarEvents,
		Test:              test,
	}

	// Publication ids already claimed by evidence or single news.
	taken := map[int]bool{}

	if m.GroupByCategories {
		bundle.NewsByCategory = map[string][]model.PublicationContext{}
		for _, cat := range categories {
			bundle.Evidence = append(bundle.Evidence, claimByCategory(evidence, cat.ID, taken)...)
			bundle.SingleNews = append(bundle.SingleNews, claimByCategory(singles, cat.ID, taken)...)

			catNews := selectFromPool(pool, taken, a.Config.MaxItemsInCategory, func(item model.PublicationContext) bool {
				return item.Publication.HasCategory(cat.ID)
			})
			if len(catNews) > 0 {
				bundle.NewsByCategory[cat.Name] = catNews
			}
		}

		// When the category list is editor-curated, sweep the
		// remaining categories so no explicitly attached item is
		// silently dropped.
		if curated {
			others, err := a.otherCategories(categories)
			if err != nil {
				return nil, err
			}
			for _, cat := range others {
				bundle.Evidence = append(bundle.Evidence, claimByCategory(evidence, cat.ID, taken)...)
				bundle.SingleNews = append(bundle.SingleNews, claimByCategory(singles, cat.ID, taken)...)
			}
		}
	} else {
		bundle.Evidence = claimAll(evidence, taken)
		bundle.SingleNews = claimAll(singles, taken)
		bundle.FreeNews = selectFromPool(pool, taken, a.Config.MaxFreeItems, func(model.PublicationContext) bool {
			return true
		})
	}

	return bundle, nil
}

// CheckData returns the prepared bundle, or nil when the issue would be
// empty and should not be sent.
func (a *ContentAggregator) CheckData(m *model.Message, test bool) (*ContentBundle, error) {
	bundle, err := a.PrepareData(m, test)
	if err != nil {
		return nil, err
	}
	if !bundle.HasContent() {
		return nil, nil
	}
	return bundle, nil
}

// categories resolves the message's configured categories. An empty
// configuration means "all categories", reported as curated=false.
func (a *ContentAggregator) categories(m *model.Message) ([]model.Category, bool, error) {
	configured, err := a.Messages.GetCategories(m.ID)
	if err != nil {
		return nil, false, err
	}
	if len(configured) > 0 {
		return configured, true, nil
	}
	all, err := a.Content.AllCategories()
	if err != nil {
		return nil, false, err
	}
	return all, false, nil
}

func (a *ContentAggregator) otherCategories(configured []model.Category) ([]model.Category, error) {
	all, err := a.Content.AllCategories()
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	for _, c := range configured {
		seen[c.ID] = true
	}
	others := []model.Category{}
	for _, c := range all {
		if !seen[c.ID] {
			others = append(others, c)
		}
	}
	return others, nil
}

// collectWebpathNews unions the qualifying news of every associated
// webpath, keyed by publication-context id so an item shared between
// webpaths is counted once.
func (a *ContentAggregator) collectWebpathNews(m *model.Message, now time.Time) (map[int]model.PublicationContext, error) {
	webpaths, err := a.Messages.GetWebpaths(m.ID)
	if err != nil {
		return nil, err
	}

	var sentCutoff *time.Time
	if m.DiscardSentNews {
		last, err := a.Sendings.GetLast(m.ID)
		if err != nil {
			return nil, err
		}
		if last != nil {
			sentCutoff = &last.Date
		}
	}

	pool := map[int]model.PublicationContext{}
	for _, mw := range webpaths {
		if !mw.Webpath.IsActive {
			continue
		}
		items, err := a.Content.WebpathNews(mw.Webpath.ID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !webpathNewsQualifies(item, mw, now, sentCutoff) {
				continue
			}
			pool[item.ID] = item
		}
	}
	return pool, nil
}

// webpathNewsQualifies applies the per-item predicates: the item and
// its publication are active, the item's own window contains now, the
// message-webpath override bounds admit its start date, and, when the
// discard-sent-news cutoff is set, the item postdates the last sending.
func webpathNewsQualifies(item model.PublicationContext, mw model.MessageWebpath, now time.Time, sentCutoff *time.Time) bool {
	if !item.IsActive || !item.Publication.IsActive {
		return false
	}
	if item.DateStart.After(now) || !item.DateEnd.After(now) {
		return false
	}
	if mw.NewsFrom != nil && item.DateStart.Before(*mw.NewsFrom) {
		return false
	}
	if mw.NewsTo != nil && item.DateStart.After(*mw.NewsTo) {
		return false
	}
	if sentCutoff != nil && !item.DateStart.After(*sentCutoff) {
		return false
	}
	return true
}

func (a *ContentAggregator) collectCalendarEvents(m *model.Message, now time.Time) (map[string][]model.CalendarEvent, error) {
	contexts, err := a.Messages.GetCalendarContexts(m.ID)
	if err != nil {
		return nil, err
	}

	events := map[string][]model.CalendarEvent{}
	for _, mcc := range contexts {
		cc := mcc.CalendarContext
		// the whole containment chain must be active
		if !mcc.IsActive || !cc.IsActive || !cc.Webpath.IsActive || !cc.Calendar.IsActive {
			continue
		}
		all, err := a.Content.CalendarEvents(cc.Calendar.ID)
		if err != nil {
			return nil, err
		}
		qualified := []model.CalendarEvent{}
		for _, e := range all {
			if !calendarEventQualifies(e, mcc, now) {
				continue
			}
			qualified = append(qualified, e)
		}
		if len(qualified) > 0 {
			events[cc.Calendar.Name] = qualified
		}
	}
	return events, nil
}

func calendarEventQualifies(e model.CalendarEvent, mcc model.MessageCalendarContext, now time.Time) bool {
	if !e.IsActive || !e.Publication.IsActive {
		return false
	}
	if !e.DateEnd.After(now) {
		return false
	}
	if mcc.EventsFrom != nil && e.DateEnd.Before(*mcc.EventsFrom) {
		return false
	}
	if mcc.EventsTo != nil && e.DateStart.After(*mcc.EventsTo) {
		return false
	}
	return true
}

// claimByCategory selects the items whose publication belongs to the
// category and has not been claimed yet, marking each claim.
func claimByCategory(items []model.MessagePublicationContext, categoryID int, taken map[int]bool) []model.PublicationContext {
	selected := []model.PublicationContext{}
	for _, item := range items {
		pubID := item.Publication.Publication.ID
		if taken[pubID] || !item.Publication.Publication.HasCategory(categoryID) {
			continue
		}
		taken[pubID] = true
		selected = append(selected, item.Publication)
	}
	return selected
}

func claimAll(items []model.MessagePublicationContext, taken map[int]bool) []model.PublicationContext {
	selected := []model.PublicationContext{}
	for _, item := range items {
		pubID := item.Publication.Publication.ID
		if taken[pubID] {
			continue
		}
		taken[pubID] = true
		selected = append(selected, item.Publication)
	}
	return selected
}

// selectFromPool orders the pooled webpath news (newest first) and
// takes up to limit items matching the predicate, skipping claimed
// publications.
func selectFromPool(pool map[int]model.PublicationContext, taken map[int]bool, limit int, match func(model.PublicationContext) bool) []model.PublicationContext {
	items := make([]model.PublicationContext, 0, len(pool))
	for _, item := range pool {
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].DateStart.Equal(items[j].DateStart) {
			return items[i].DateStart.After(items[j].DateStart)
		}
		return items[i].ID < items[j].ID
	})

	selected := []model.PublicationContext{}
	for _, item := range items {
		if len(selected) == limit {
			break
		}
		if taken[item.Publication.ID] || !match(item) {
			continue
		}
		selected = append(selected, item)
	}
	return selected
}
