package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/mailer"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/service"
)

// Stub repositories for the scheduler pass.

type stubMessageRepo struct {
	messages    map[int]*model.Message
	sending     map[int]bool
	sendingTest map[int]bool
	queued      map[int]bool
	queuedTest  map[int]bool
}

func newStubMessageRepo(messages ...*model.Message) *stubMessageRepo {
	r := &stubMessageRepo{
		messages:    map[int]*model.Message{},
		sending:     map[int]bool{},
		sendingTest: map[int]bool{},
		queued:      map[int]bool{},
		queuedTest:  map[int]bool{},
	}
	for _, m := range messages {
		r.messages[m.ID] = m
		r.queued[m.ID] = m.Queued
		r.queuedTest[m.ID] = m.QueuedTest
	}
	return r
}

func (r *stubMessageRepo) Create(m *model.Message) error { return nil }
func (r *stubMessageRepo) Update(m *model.Message) error { return nil }
func (r *stubMessageRepo) GetByID(id int) (*model.Message, error) {
	return r.messages[id], nil
}
func (r *stubMessageRepo) ListMessages(offset, limit, newsletterID int) ([]*model.Message, int, error) {
	return nil, 0, nil
}
func (r *stubMessageRepo) ListSendable() ([]*model.Message, error) {
	messages := []*model.Message{}
	for _, m := range r.messages {
		messages = append(messages, m)
	}
	return messages, nil
}

func (r *stubMessageRepo) flags(test bool) (map[int]bool, map[int]bool) {
	if test {
		return r.sendingTest, r.queuedTest
	}
	return r.sending, r.queued
}

func (r *stubMessageRepo) TryMarkSending(id int, test bool) (bool, error) {
	sending, _ := r.flags(test)
	if sending[id] {
		return false, nil
	}
	sending[id] = true
	return true, nil
}

func (r *stubMessageRepo) ClearSending(id int, test bool) error {
	sending, _ := r.flags(test)
	sending[id] = false
	return nil
}

func (r *stubMessageRepo) MarkQueued(id int, test bool) error {
	_, queued := r.flags(test)
	queued[id] = true
	return nil
}

func (r *stubMessageRepo) ClearQueued(id int, test bool) error {
	_, queued := r.flags(test)
	queued[id] = false
	return nil
}

func (r *stubMessageRepo) GetWebpaths(messageID int) ([]model.MessageWebpath, error) {
	return nil, nil
}
func (r *stubMessageRepo) GetCategories(messageID int) ([]model.Category, error) {
	return nil, nil
}
func (r *stubMessageRepo) GetPublications(messageID int) ([]model.Publication, error) {
	return nil, nil
}
func (r *stubMessageRepo) GetPublicationContexts(messageID int, inEvidence bool) ([]model.MessagePublicationContext, error) {
	return nil, nil
}
func (r *stubMessageRepo) GetCalendarContexts(messageID int) ([]model.MessageCalendarContext, error) {
	return nil, nil
}
func (r *stubMessageRepo) GetAttachments(messageID int) ([]model.MessageAttachment, error) {
	return nil, nil
}

type stubSendingRepo struct {
	sendings []model.MessageSending
}

func (r *stubSendingRepo) Create(s *model.MessageSending) error {
	s.ID = len(r.sendings) + 1
	r.sendings = append(r.sendings, *s)
	return nil
}

func (r *stubSendingRepo) GetLast(messageID int) (*model.MessageSending, error) {
	for i := len(r.sendings) - 1; i >= 0; i-- {
		if r.sendings[i].MessageID == messageID {
			return &r.sendings[i], nil
		}
	}
	return nil, nil
}

func (r *stubSendingRepo) ListByMessage(messageID int) ([]model.MessageSending, error) {
	return r.sendings, nil
}

type stubContentProvider struct{}

func (stubContentProvider) AllCategories() ([]model.Category, error) { return nil, nil }
func (stubContentProvider) WebpathNews(webpathID int) ([]model.PublicationContext, error) {
	return nil, nil
}
func (stubContentProvider) CalendarEvents(calendarID int) ([]model.CalendarEvent, error) {
	return nil, nil
}

type stubNewsletterRepo struct {
	newsletter *model.Newsletter
}

func (r *stubNewsletterRepo) Create(n *model.Newsletter) error { return nil }
func (r *stubNewsletterRepo) Update(n *model.Newsletter) error { return nil }
func (r *stubNewsletterRepo) GetByID(id int) (*model.Newsletter, error) {
	return r.newsletter, nil
}
func (r *stubNewsletterRepo) GetActiveBySlug(slug string) (*model.Newsletter, error) {
	return r.newsletter, nil
}
func (r *stubNewsletterRepo) List(publicOnly bool) ([]model.Newsletter, error) {
	return nil, nil
}

type stubSubscriptionRepo struct {
	recipients []model.Recipient
}

func (r *stubSubscriptionRepo) GetByNewsletterAndEmail(newsletterID int, email string) (*model.NewsletterSubscription, error) {
	return nil, nil
}
func (r *stubSubscriptionRepo) Create(s *model.NewsletterSubscription) error { return nil }
func (r *stubSubscriptionRepo) Update(s *model.NewsletterSubscription) error { return nil }
func (r *stubSubscriptionRepo) GetValidRecipients(newsletterID int, test bool) ([]model.Recipient, error) {
	return r.recipients, nil
}

type stubMailer struct {
	sent []mailer.OutgoingMail
}

func (m *stubMailer) Send(mail mailer.OutgoingMail) error {
	m.sent = append(m.sent, mail)
	return nil
}

type schedulerFixture struct {
	messages *stubMessageRepo
	sendings *stubSendingRepo
	mail     *stubMailer
	pipeline *service.SendPipeline
	ready    *service.ReadinessEvaluator
	agg      *service.ContentAggregator
}

func newSchedulerFixture(t *testing.T, m *model.Message) *schedulerFixture {
	t.Helper()

	dir := t.TempDir()
	tmpl := filepath.Join(dir, "default_newsletter.html")
	if err := os.WriteFile(tmpl, []byte("<html>{{ .Content }}</html>"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.SMTP.From = "noreply@example.org"
	cfg.App.MediaRoot = t.TempDir()
	cfg.App.TemplatesDir = dir
	cfg.Newsletter = config.NewsletterConfig{
		MaxItemsInCategory:            3,
		MaxFreeItems:                  10,
		MaxRecipientsForManualSending: 100,
		DefaultTemplate:               "default_newsletter.html",
	}

	newsletter := &model.Newsletter{ID: 1, Name: "Campus News", Slug: "campus-news"}
	newsletter.IsActive = true

	messages := newStubMessageRepo(m)
	sendings := &stubSendingRepo{}
	mail := &stubMailer{}
	subscriptions := &stubSubscriptionRepo{recipients: []model.Recipient{
		{Email: "user@example.org", HTML: true},
	}}

	agg := service.NewContentAggregator(messages, sendings, stubContentProvider{}, cfg.Newsletter)
	renderer := service.NewTemplateRenderer(dir, cfg.Newsletter.DefaultTemplate)
	pipeline := service.NewSendPipeline(messages, &stubNewsletterRepo{newsletter: newsletter},
		subscriptions, sendings, agg, renderer, mail, cfg)
	pipeline.Sleep = func(time.Duration) {}

	return &schedulerFixture{
		messages: messages,
		sendings: sendings,
		mail:     mail,
		pipeline: pipeline,
		ready:    service.NewReadinessEvaluator(sendings),
		agg:      agg,
	}
}

// A due message with nothing to aggregate still goes out on the normal
// pass, so its sending is registered and the queued flag is released.
func TestPassSendsEmptyNormalMessage(t *testing.T) {
	m := &model.Message{ID: 1, Name: "Issue 1", NewsletterID: 1, Queued: true}
	m.IsActive = true
	f := newSchedulerFixture(t, m)

	pass(f.messages, f.ready, f.agg, f.pipeline, false)

	if len(f.mail.sent) != 1 {
		t.Fatalf("expected the empty issue to be sent, got %d emails", len(f.mail.sent))
	}
	if len(f.sendings.sendings) != 1 {
		t.Fatalf("expected a sending record, got %d", len(f.sendings.sendings))
	}
	if f.messages.queued[1] {
		t.Error("queued flag must be released after the send")
	}
}

func TestPassSkipsEmptyTestMessage(t *testing.T) {
	m := &model.Message{ID: 1, Name: "Issue 1", NewsletterID: 1, QueuedTest: true}
	m.IsActive = true
	f := newSchedulerFixture(t, m)

	pass(f.messages, f.ready, f.agg, f.pipeline, true)

	if len(f.mail.sent) != 0 {
		t.Errorf("empty test message must not be sent, got %d emails", len(f.mail.sent))
	}
	if len(f.sendings.sendings) != 0 {
		t.Errorf("test pass must not record sendings, got %d", len(f.sendings.sendings))
	}
}

func TestPassSendsTestMessageWithContent(t *testing.T) {
	m := &model.Message{ID: 1, Name: "Issue 1", NewsletterID: 1,
		QueuedTest: true, Content: "<p>Hi</p>"}
	m.IsActive = true
	f := newSchedulerFixture(t, m)

	pass(f.messages, f.ready, f.agg, f.pipeline, true)

	if len(f.mail.sent) != 1 {
		t.Fatalf("expected the test issue to be sent, got %d emails", len(f.mail.sent))
	}
	if len(f.sendings.sendings) != 0 {
		t.Errorf("test send must not record a sending, got %d", len(f.sendings.sendings))
	}
	if f.messages.queuedTest[1] {
		t.Error("queued_test must be released after the test send")
	}
}
