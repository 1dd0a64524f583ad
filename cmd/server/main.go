// cmd/server/main.go
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/controller"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/db"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/handler"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/mailer"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/middleware"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/service"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/token"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	cfg := config.MustLoadConfig(config.GetEnv("CONFIG_PATH", "config.yml"))

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()

	newsletterRepo := &repository.NewsletterRepository{DB: conn}
	subscriptionRepo := &repository.SubscriptionRepository{DB: conn}
	messageRepo := &repository.MessageRepository{DB: conn}
	sendingRepo := &repository.SendingRepository{DB: conn}
	contentRepo := &repository.ContentRepository{DB: conn}

	smtpSender := mailer.NewSMTPSender(cfg)
	tokens := token.NewManager(cfg.App.SecretKey,
		time.Duration(cfg.Newsletter.TokenExpirationDays)*24*time.Hour)

	aggregator := service.NewContentAggregator(messageRepo, sendingRepo, contentRepo, cfg.Newsletter)
	renderer := service.NewTemplateRenderer(cfg.App.TemplatesDir, cfg.Newsletter.DefaultTemplate)
	pipeline := service.NewSendPipeline(messageRepo, newsletterRepo, subscriptionRepo,
		sendingRepo, aggregator, renderer, smtpSender, cfg)
	subscriptionService := service.NewSubscriptionService(newsletterRepo, subscriptionRepo,
		tokens, smtpSender, cfg.App.BaseURL, cfg.SMTP.From)

	subscriptionHandler := handler.NewSubscriptionHandler(subscriptionService, newsletterRepo)
	newsletterController := &controller.NewsletterController{Newsletters: newsletterRepo}
	messageController := &controller.MessageController{
		Messages:   messageRepo,
		Sendings:   sendingRepo,
		Pipeline:   pipeline,
		Aggregator: aggregator,
		Renderer:   renderer,
	}

	r := chi.NewRouter()

	// Public routes
	r.Get("/newsletters", subscriptionHandler.ListNewslettersHandler)
	r.Post("/newsletters/{slug}/subscribe", subscriptionHandler.SubscribeHandler)
	r.Post("/newsletters/{slug}/unsubscribe", subscriptionHandler.UnsubscribeHandler)
	r.Get("/newsletters/subscribe/confirm", subscriptionHandler.SubscribeConfirmHandler)
	r.Get("/newsletters/unsubscribe/confirm", subscriptionHandler.UnsubscribeConfirmHandler)

	// Admin routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIKey(cfg.App.APIKey))

		r.Post("/newsletters", newsletterController.CreateNewsletter)
		r.Get("/newsletters", newsletterController.ListNewsletters)
		r.Get("/newsletters/{id}", newsletterController.GetNewsletter)
		r.Patch("/newsletters/{id}", newsletterController.UpdateNewsletter)

		r.Post("/messages", messageController.CreateMessage)
		r.Get("/messages", messageController.ListMessages)
		r.Get("/messages/{id}", messageController.GetMessage)
		r.Patch("/messages/{id}", messageController.UpdateMessage)
		r.Post("/messages/{id}/send", messageController.SendMessage)
		r.Post("/messages/{id}/send-test", messageController.SendTestMessage)
		r.Get("/messages/{id}/preview", messageController.PreviewMessage)
		r.Get("/messages/{id}/sendings", messageController.ListSendings)
	})

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	log.Println("🚀 Server running on " + addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
