// internal/controller/message_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/service"
)

// MessageController is the admin REST surface for messages: CRUD,
// manual send triggers, preview and the sending history.
type MessageController struct {
	Messages   repository.MessageRepositoryInterface
	Sendings   repository.SendingRepositoryInterface
	Pipeline   *service.SendPipeline
	Aggregator *service.ContentAggregator
	Renderer   *service.TemplateRenderer
}

func (c *MessageController) CreateMessage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name              string     `json:"name"`
		NewsletterID      int        `json:"newsletter_id"`
		GroupByCategories bool       `json:"group_by_categories"`
		DateStart         *time.Time `json:"date_start"`
		DateEnd           *time.Time `json:"date_end"`
		RepeatEach        *int       `json:"repeat_each"`
		Hour              *int       `json:"hour"`
		Banner            string     `json:"banner"`
		BannerURL         string     `json:"banner_url"`
		IntroText         string     `json:"intro_text"`
		Content           string     `json:"content"`
		FooterText        string     `json:"footer_text"`
		Template          string     `json:"template"`
		WeekDays          string     `json:"week_days"`
		DiscardSentNews   bool       `json:"discard_sent_news"`
		IsActive          bool       `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.NewsletterID == 0 {
		http.Error(w, "name and newsletter_id are required", http.StatusBadRequest)
		return
	}
	if body.Hour != nil && (*body.Hour < 0 || *body.Hour > 23) {
		http.Error(w, "hour must be between 0 and 23", http.StatusBadRequest)
		return
	}

	message := &model.Message{
		Name:              body.Name,
		NewsletterID:      body.NewsletterID,
		GroupByCategories: body.GroupByCategories,
		DateStart:         body.DateStart,
		DateEnd:           body.DateEnd,
		RepeatEach:        body.RepeatEach,
		Hour:              body.Hour,
		Banner:            body.Banner,
		BannerURL:         body.BannerURL,
		IntroText:         body.IntroText,
		Content:           body.Content,
		FooterText:        body.FooterText,
		Template:          body.Template,
		WeekDays:          body.WeekDays,
		DiscardSentNews:   body.DiscardSentNews,
	}
	message.IsActive = body.IsActive

	if err := c.Messages.Create(message); err != nil {
		http.Error(w, "failed to create message: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(message)
}

func (c *MessageController) ListMessages(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	newsletterID, _ := strconv.Atoi(r.URL.Query().Get("newsletter_id"))

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	messages, total, err := c.Messages.ListMessages((page-1)*pageSize, pageSize, newsletterID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": messages,
		"pagination": map[string]int{
			"total_count": total,
			"total_pages": (total + pageSize - 1) / pageSize,
			"page":        page,
			"page_size":   pageSize,
		},
	})
}

func (c *MessageController) GetMessage(w http.ResponseWriter, r *http.Request) {
	message, ok := c.loadMessage(w, r)
	if !ok {
		return
	}

	sendings, err := c.Sendings.ListByMessage(message.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":  message,
		"sendings": sendings,
	})
}

func (c *MessageController) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	message, ok := c.loadMessage(w, r)
	if !ok {
		return
	}

	var body struct {
		Name              *string    `json:"name"`
		GroupByCategories *bool      `json:"group_by_categories"`
		DateStart         *time.Time `json:"date_start"`
		DateEnd           *time.Time `json:"date_end"`
		RepeatEach        *int       `json:"repeat_each"`
		Hour              *int       `json:"hour"`
		Banner            *string    `json:"banner"`
		BannerURL         *string    `json:"banner_url"`
		IntroText         *string    `json:"intro_text"`
		Content           *string    `json:"content"`
		FooterText        *string    `json:"footer_text"`
		Template          *string    `json:"template"`
		WeekDays          *string    `json:"week_days"`
		DiscardSentNews   *bool      `json:"discard_sent_news"`
		IsActive          *bool      `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Hour != nil && (*body.Hour < 0 || *body.Hour > 23) {
		http.Error(w, "hour must be between 0 and 23", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		message.Name = *body.Name
	}
	if body.GroupByCategories != nil {
		message.GroupByCategories = *body.GroupByCategories
	}
	if body.DateStart != nil {
		message.DateStart = body.DateStart
	}
	if body.DateEnd != nil {
		message.DateEnd = body.DateEnd
	}
	if body.RepeatEach != nil {
		message.RepeatEach = body.RepeatEach
	}
	if body.Hour != nil {
		message.Hour = body.Hour
	}
	if body.Banner != nil {
		message.Banner = *body.Banner
	}
	if body.BannerURL != nil {
		message.BannerURL = *body.BannerURL
	}
	if body.IntroText != nil {
		message.IntroText = *body.IntroText
	}
	if body.Content != nil {
		message.Content = *body.Content
	}
	if body.FooterText != nil {
		message.FooterText = *body.FooterText
	}
	if body.Template != nil {
		message.Template = *body.Template
	}
	if body.WeekDays != nil {
		message.WeekDays = *body.WeekDays
	}
	if body.DiscardSentNews != nil {
		message.DiscardSentNews = *body.DiscardSentNews
	}
	if body.IsActive != nil {
		message.IsActive = *body.IsActive
	}

	if err := c.Messages.Update(message); err != nil {
		http.Error(w, "failed to update message: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(message)
}

// SendMessage triggers a manual send to the real subscribers.
func (c *MessageController) SendMessage(w http.ResponseWriter, r *http.Request) {
	c.startSending(w, r, false)
}

// SendTestMessage triggers a manual send to the test recipients.
func (c *MessageController) SendTestMessage(w http.ResponseWriter, r *http.Request) {
	c.startSending(w, r, true)
}

func (c *MessageController) startSending(w http.ResponseWriter, r *http.Request, test bool) {
	message, ok := c.loadMessage(w, r)
	if !ok {
		return
	}

	result, err := c.Pipeline.StartSending(message, test)
	if err != nil {
		if errors.As(err, new(*appErrors.AlreadySendingError)) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("❌ Send failed for message %d: %v", message.ID, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message_id": message.ID,
		"status":     result,
	})
}

// PreviewMessage renders the message content without sending anything.
func (c *MessageController) PreviewMessage(w http.ResponseWriter, r *http.Request) {
	message, ok := c.loadMessage(w, r)
	if !ok {
		return
	}

	data, err := c.Aggregator.CheckData(message, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if data == nil {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"message_id": message.ID,
			"empty":      true,
		})
		return
	}

	html, err := c.Renderer.RenderHTML(message, data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(html))
}

// ListSendings returns the sending history of a message.
func (c *MessageController) ListSendings(w http.ResponseWriter, r *http.Request) {
	message, ok := c.loadMessage(w, r)
	if !ok {
		return
	}

	sendings, err := c.Sendings.ListByMessage(message.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": sendings,
	})
}

func (c *MessageController) loadMessage(w http.ResponseWriter, r *http.Request) (*model.Message, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid message id", http.StatusBadRequest)
		return nil, false
	}

	message, err := c.Messages.GetByID(id)
	if err != nil {
		if errors.As(err, new(*appErrors.MessageNotFoundError)) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return nil, false
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return message, true
}
