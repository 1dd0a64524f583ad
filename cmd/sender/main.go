// cmd/sender/main.go
package main

import (
	"flag"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/db"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/mailer"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/service"
)

// The sender is the scheduler half of the system: every hour it walks
// the messages of active newsletters and dispatches the ones due,
// normal sends first, then queued test sends.
func main() {
	once := flag.Bool("once", false, "run a single pass and exit")
	testOnly := flag.Bool("test", false, "run only the test-send pass")
	flag.Parse()

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

	aggregator := service.NewContentAggregator(messageRepo, sendingRepo, contentRepo, cfg.Newsletter)
	renderer := service.NewTemplateRenderer(cfg.App.TemplatesDir, cfg.Newsletter.DefaultTemplate)
	pipeline := service.NewSendPipeline(messageRepo, newsletterRepo, subscriptionRepo,
		sendingRepo, aggregator, renderer, mailer.NewSMTPSender(cfg), cfg)
	readiness := service.NewReadinessEvaluator(sendingRepo)

	run := func() {
		if !*testOnly {
			pass(messageRepo, readiness, aggregator, pipeline, false)
		}
		pass(messageRepo, readiness, aggregator, pipeline, true)
	}

	if *once {
		run()
		return
	}

	c := cron.New()
	if _, err := c.AddFunc("0 * * * *", run); err != nil {
		log.Fatal(err)
	}
	log.Println("🚀 Sender running, ticking every hour")
	c.Run()
}

func pass(messages repository.MessageRepositoryInterface,
	readiness *service.ReadinessEvaluator,
	aggregator *service.ContentAggregator,
	pipeline *service.SendPipeline, test bool) {

	label := "message"
	if test {
		label = "test message"
	}

	sendable, err := messages.ListSendable()
	if err != nil {
		log.Printf("❌ Failed to list messages: %v", err)
		return
	}

	start := time.Now()
	for _, m := range sendable {
		ready, err := readiness.IsReady(m, test)
		if err != nil {
			log.Printf("❌ Readiness check failed for %s %d: %v", label, m.ID, err)
			continue
		}
		if !ready {
			continue
		}

		// Only test sends are gated on content: a due normal message
		// goes out even when empty, so its sending is registered and
		// the queued flag and repeat interval advance.
		if test {
			data, err := aggregator.CheckData(m, true)
			if err != nil {
				log.Printf("❌ Failed to prepare %s %d: %v", label, m.ID, err)
				continue
			}
			if data == nil {
				log.Printf("⚠️ Skipping %s %d (%s), nothing to send", label, m.ID, m.Name)
				continue
			}

			log.Printf("Sending %s %d (%s)", label, m.ID, m.Name)
			if err := pipeline.Send(m, true, data); err != nil {
				log.Printf("❌ Failed to send %s %d: %v", label, m.ID, err)
			}
			continue
		}

		log.Printf("Sending %s %d (%s)", label, m.ID, m.Name)
		if err := pipeline.Send(m, false, nil); err != nil {
			log.Printf("❌ Failed to send %s %d: %v", label, m.ID, err)
			continue
		}
	}
	log.Printf("✅ Pass completed in %s", time.Since(start).Round(time.Millisecond))
}
