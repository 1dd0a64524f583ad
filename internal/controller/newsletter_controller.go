// internal/controller/newsletter_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
)

// NewsletterController is the admin REST surface for newsletters.
type NewsletterController struct {
	Newsletters repository.NewsletterRepositoryInterface
}

func (c *NewsletterController) CreateNewsletter(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name            string  `json:"name"`
		Slug            string  `json:"slug"`
		Description     string  `json:"description"`
		SiteID          int     `json:"site_id"`
		SenderAddress   *string `json:"sender_address"`
		IsSubscriptable bool    `json:"is_subscriptable"`
		IsPublic        bool    `json:"is_public"`
		IsActive        bool    `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Slug == "" {
		http.Error(w, "name and slug are required", http.StatusBadRequest)
		return
	}

	newsletter := &model.Newsletter{
		Name:            body.Name,
		Slug:            body.Slug,
		Description:     body.Description,
		SiteID:          body.SiteID,
		SenderAddress:   body.SenderAddress,
		IsSubscriptable: body.IsSubscriptable,
		IsPublic:        body.IsPublic,
	}
	newsletter.IsActive = body.IsActive

	if err := c.Newsletters.Create(newsletter); err != nil {
		http.Error(w, "failed to create newsletter: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newsletter)
}

func (c *NewsletterController) UpdateNewsletter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	newsletter, err := c.Newsletters.GetByID(id)
	if err != nil {
		writeNewsletterError(w, err)
		return
	}

	var body struct {
		Name            *string `json:"name"`
		Description     *string `json:"description"`
		SenderAddress   *string `json:"sender_address"`
		IsSubscriptable *bool   `json:"is_subscriptable"`
		IsPublic        *bool   `json:"is_public"`
		IsActive        *bool   `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if body.Name != nil {
		newsletter.Name = *body.Name
	}
	if body.Description != nil {
		newsletter.Description = *body.Description
	}
	if body.SenderAddress != nil {
		newsletter.SenderAddress = body.SenderAddress
	}
	if body.IsSubscriptable != nil {
		newsletter.IsSubscriptable = *body.IsSubscriptable
	}
	if body.IsPublic != nil {
		newsletter.IsPublic = *body.IsPublic
	}
	if body.IsActive != nil {
		newsletter.IsActive = *body.IsActive
	}

	if err := c.Newsletters.Update(newsletter); err != nil {
		http.Error(w, "failed to update newsletter: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newsletter)
}

func (c *NewsletterController) ListNewsletters(w http.ResponseWriter, r *http.Request) {
	newsletters, err := c.Newsletters.List(false)
	if err != nil {
		http.Error(w, "failed to fetch newsletters: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": newsletters,
	})
}

func (c *NewsletterController) GetNewsletter(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid newsletter id", http.StatusBadRequest)
		return
	}

	newsletter, err := c.Newsletters.GetByID(id)
	if err != nil {
		writeNewsletterError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newsletter)
}

func writeNewsletterError(w http.ResponseWriter, err error) {
	if errors.As(err, new(*appErrors.NewsletterNotFoundError)) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
