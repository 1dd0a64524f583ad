// internal/handler/subscription_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/service"
)

// SubscriptionHandler serves the public-facing surface: subscribe and
// unsubscribe forms posted from CMS pages, confirm links followed from
// emails, and the public newsletter listing.
type SubscriptionHandler struct {
	Service     *service.SubscriptionService
	Newsletters repository.NewsletterRepositoryInterface
}

func NewSubscriptionHandler(svc *service.SubscriptionService,
	newsletters repository.NewsletterRepositoryInterface) *SubscriptionHandler {
	return &SubscriptionHandler{
		Service:     svc,
		Newsletters: newsletters,
	}
}

// SubscribeHandler receives the subscribe form and mails a confirm link.
func (h *SubscriptionHandler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	h.handleRequest(w, r, true)
}

// UnsubscribeHandler receives the unsubscribe form and mails a confirm link.
func (h *SubscriptionHandler) UnsubscribeHandler(w http.ResponseWriter, r *http.Request) {
	h.handleRequest(w, r, false)
}

func (h *SubscriptionHandler) handleRequest(w http.ResponseWriter, r *http.Request, subscribing bool) {
	slug := chi.URLParam(r, "slug")

	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}
	req := service.SubscribeRequest{
		FirstName: r.PostFormValue("first_name"),
		LastName:  r.PostFormValue("last_name"),
		Email:     r.PostFormValue("email"),
		HTML:      r.PostFormValue("html") != "",
	}
	if req.Email == "" {
		flashAndRedirect(w, r, "Please provide an email address")
		return
	}

	var err error
	if subscribing {
		err = h.Service.RequestSubscribe(slug, req)
	} else {
		err = h.Service.RequestUnsubscribe(slug, req)
	}
	if err != nil {
		flashAndRedirect(w, r, userMessage(err))
		return
	}

	flashAndRedirect(w, r, "We sent you an email, check your inbox to confirm")
}

// SubscribeConfirmHandler applies the token carried by a confirm link.
func (h *SubscriptionHandler) SubscribeConfirmHandler(w http.ResponseWriter, r *http.Request) {
	h.handleConfirm(w, r, true)
}

// UnsubscribeConfirmHandler applies an unsubscribe confirm link.
func (h *SubscriptionHandler) UnsubscribeConfirmHandler(w http.ResponseWriter, r *http.Request) {
	h.handleConfirm(w, r, false)
}

func (h *SubscriptionHandler) handleConfirm(w http.ResponseWriter, r *http.Request, subscribing bool) {
	rawToken := r.URL.Query().Get("d")
	if rawToken == "" {
		http.Error(w, "missing token", http.StatusBadRequest)
		return
	}

	var err error
	if subscribing {
		_, err = h.Service.ConfirmSubscribe(rawToken)
	} else {
		_, err = h.Service.ConfirmUnsubscribe(rawToken)
	}
	if err != nil {
		log.Printf("⚠️ Confirm failed: %v", err)
		flashAndRedirect(w, r, userMessage(err))
		return
	}

	if subscribing {
		flashAndRedirect(w, r, "Your subscription was successful")
	} else {
		flashAndRedirect(w, r, "You have been unsubscribed")
	}
}

// ListNewslettersHandler returns the public newsletters as JSON.
func (h *SubscriptionHandler) ListNewslettersHandler(w http.ResponseWriter, r *http.Request) {
	newsletters, err := h.Newsletters.List(true)
	if err != nil {
		http.Error(w, "failed to fetch newsletters: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"data": newsletters,
	})
}

// userMessage maps known errors to a message safe to show visitors.
func userMessage(err error) string {
	var state *appErrors.InvalidSubscriptionStateError
	switch {
	case errors.As(err, &state):
		return state.Reason
	case errors.As(err, new(*appErrors.NotSubscribableError)):
		return err.Error()
	case errors.As(err, new(*appErrors.TokenExpiredError)):
		return "This link has expired, please submit a new request"
	case errors.As(err, new(*appErrors.NewsletterNotFoundError)):
		return "Newsletter not found"
	}
	log.Printf("⚠️ Subscription flow error: %v", err)
	return "Something went wrong, try again later"
}

// flashAndRedirect leaves a one-shot message cookie and bounces the
// visitor back where they came from.
func flashAndRedirect(w http.ResponseWriter, r *http.Request, message string) {
	http.SetCookie(w, &http.Cookie{
		Name:    "newsletter_flash",
		Value:   url.QueryEscape(message),
		Path:    "/",
		Expires: time.Now().Add(time.Minute),
	})

	target := r.Referer()
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
