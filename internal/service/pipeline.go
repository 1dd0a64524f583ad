// internal/service/pipeline.go
package service

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/mailer"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/repository"
)

// SendPipeline drives a full message send: claim the in-flight flag,
// render once, deliver per recipient, record the sending.
type SendPipeline struct {
	Messages      repository.MessageRepositoryInterface
	Newsletters   repository.NewsletterRepositoryInterface
	Subscriptions repository.SubscriptionRepositoryInterface
	Sendings      repository.SendingRepositoryInterface
	Aggregator    *ContentAggregator
	Renderer      *TemplateRenderer
	Mailer        mailer.Sender
	Config        *config.Config
	Now           func() time.Time
	Sleep         func(d time.Duration)
}

func NewSendPipeline(messages repository.MessageRepositoryInterface,
	newsletters repository.NewsletterRepositoryInterface,
	subscriptions repository.SubscriptionRepositoryInterface,
	sendings repository.SendingRepositoryInterface,
	aggregator *ContentAggregator,
	renderer *TemplateRenderer,
	sender mailer.Sender,
	cfg *config.Config) *SendPipeline {
	return &SendPipeline{
		Messages:      messages,
		Newsletters:   newsletters,
		Subscriptions: subscriptions,
		Sendings:      sendings,
		Aggregator:    aggregator,
		Renderer:      renderer,
		Mailer:        sender,
		Config:        cfg,
		Now:           time.Now,
		Sleep:         time.Sleep,
	}
}

// Send runs one complete send of the message. data may carry an already
// prepared bundle (the scheduler checks content before sending); nil
// means prepare it here.
//
// A single failed recipient never aborts the send: the error is logged
// and the loop moves on. The in-flight flag is always released, whatever
// the outcome.
func (p *SendPipeline) Send(m *model.Message, test bool, data *ContentBundle) error {
	claimed, err := p.Messages.TryMarkSending(m.ID, test)
	if err != nil {
		return err
	}
	if !claimed {
		return appErrors.NewAlreadySending(m.ID, test)
	}
	defer func() {
		if err := p.Messages.ClearSending(m.ID, test); err != nil {
			log.Printf("⚠️ Failed to clear sending flag for message %d: %v", m.ID, err)
		}
	}()

	newsletter, err := p.Newsletters.GetByID(m.NewsletterID)
	if err != nil {
		return err
	}

	if data == nil {
		data, err = p.Aggregator.PrepareData(m, test)
		if err != nil {
			return err
		}
	}
	data.Newsletter = newsletter

	html, err := p.Renderer.RenderHTML(m, data)
	if err != nil {
		return err
	}
	text := p.Renderer.RenderPlain(m, data)

	recipients, err := p.Subscriptions.GetValidRecipients(m.NewsletterID, test)
	if err != nil {
		return err
	}

	attachments := p.attachmentPaths(m)
	from := newsletter.FromAddress(p.Config.SMTP.From)

	for i, recipient := range recipients {
		p.pace(i + 1)

		mail := mailer.OutgoingMail{
			To:          recipient.Email,
			From:        from,
			Subject:     m.Name,
			Text:        text,
			Attachments: attachments,
		}
		if recipient.HTML {
			mail.HTML = html
		}
		if err := p.Mailer.Send(mail); err != nil {
			log.Printf("⚠️ Failed to send message %d to %s: %v", m.ID, recipient.Email, err)
		}
	}

	if test {
		return p.Messages.ClearQueued(m.ID, true)
	}
	return p.recordSending(m, newsletter, html, len(recipients))
}

// StartSending triggers a manual send. Small audiences go out
// synchronously; anything above the threshold is queued for the next
// scheduler tick so the HTTP request returns immediately.
func (p *SendPipeline) StartSending(m *model.Message, test bool) (string, error) {
	recipients, err := p.Subscriptions.GetValidRecipients(m.NewsletterID, test)
	if err != nil {
		return "", err
	}

	if len(recipients) > p.Config.Newsletter.MaxRecipientsForManualSending {
		if err := p.Messages.MarkQueued(m.ID, test); err != nil {
			return "", err
		}
		if test {
			return "Test message queued for the next submission", nil
		}
		return "Message queued for the next submission", nil
	}

	if err := p.Send(m, test, nil); err != nil {
		return "", err
	}
	if test {
		return "Test message sent", nil
	}
	return "Message sent", nil
}

// pace applies the configured delays: the per-recipient delay before
// every send, plus the group delay on every Nth recipient. index starts
// at 1 so the group delay never fires before the first recipient.
func (p *SendPipeline) pace(index int) {
	nl := p.Config.Newsletter
	if nl.SendEmailDelay > 0 {
		p.Sleep(time.Duration(nl.SendEmailDelay) * time.Second)
	}
	if nl.SendEmailGroup > 0 && nl.SendEmailGroupDelay > 0 && index%nl.SendEmailGroup == 0 {
		p.Sleep(time.Duration(nl.SendEmailGroupDelay) * time.Second)
	}
}

// attachmentPaths resolves the message's attachments to absolute paths,
// skipping files missing on disk so one stale row cannot block a send.
func (p *SendPipeline) attachmentPaths(m *model.Message) []string {
	rows, err := p.Messages.GetAttachments(m.ID)
	if err != nil {
		log.Printf("⚠️ Failed to load attachments for message %d: %v", m.ID, err)
		return nil
	}

	paths := []string{}
	for _, a := range rows {
		path := filepath.Join(p.Config.App.MediaRoot, a.Attachment)
		if _, err := os.Stat(path); err != nil {
			log.Printf("⚠️ Attachment %s for message %d not found, skipping", path, m.ID)
			continue
		}
		paths = append(paths, path)
	}
	return paths
}

// recordSending archives the rendered HTML under the media root and
// writes the sending record. A failed archive is logged but never loses
// the record, the repeat-interval rule depends on it.
func (p *SendPipeline) recordSending(m *model.Message, n *model.Newsletter, html string, recipients int) error {
	now := p.Now()

	dir := filepath.Join(p.Config.App.MediaRoot, "newsletter",
		fmt.Sprintf("%d", n.ID), fmt.Sprintf("%d", m.ID), "sendings")
	name := fmt.Sprintf("newsletter_%s_%s.html", n.Slug, now.Format("2006-01-02_15-04"))
	path := filepath.Join(dir, name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("⚠️ Failed to create sendings dir %s: %v", dir, err)
		path = ""
	} else if err := os.WriteFile(path, []byte(html), 0o644); err != nil {
		log.Printf("⚠️ Failed to archive sending %s: %v", path, err)
		path = ""
	}

	sending := &model.MessageSending{
		MessageID:  m.ID,
		Date:       now,
		HTMLFile:   path,
		Recipients: recipients,
	}
	if err := p.Sendings.Create(sending); err != nil {
		return err
	}

	log.Printf("✅ Message %d sent to %d recipients", m.ID, recipients)
	return p.Messages.ClearQueued(m.ID, false)
}
