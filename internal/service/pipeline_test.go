package service_test

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/config"
	appErrors "github.com/UniversitaDellaCalabria/unicms-newsletter/internal/errors"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/service"
)

type pipelineFixture struct {
	messages      *mockMessageRepo
	newsletters   *mockNewsletterRepo
	subscriptions *mockSubscriptionRepo
	sendings      *mockSendingRepo
	mail          *mockMailer
	pipeline      *service.SendPipeline
	message       *model.Message
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	dir := t.TempDir()
	tmpl := filepath.Join(dir, "default_newsletter.html")
	if err := os.WriteFile(tmpl, []byte("<html><body>{{ .Content }}</body></html>"), 0o644); err != nil {
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

	messages := newMockMessageRepo()
	message := &model.Message{ID: 1, Name: "Issue 1", NewsletterID: 1, Content: "<p>Hi</p>"}
	message.IsActive = true
	messages.messages[1] = message

	newsletters := &mockNewsletterRepo{newsletters: map[int]*model.Newsletter{1: newsletter}}
	subscriptions := newMockSubscriptionRepo()
	sendings := &mockSendingRepo{}
	mail := &mockMailer{}
	content := &mockContentProvider{}

	aggregator := service.NewContentAggregator(messages, sendings, content, cfg.Newsletter)
	aggregator.Now = func() time.Time { return wednesdayAt14 }
	renderer := service.NewTemplateRenderer(dir, cfg.Newsletter.DefaultTemplate)

	pipeline := service.NewSendPipeline(messages, newsletters, subscriptions,
		sendings, aggregator, renderer, mail, cfg)
	pipeline.Now = func() time.Time { return wednesdayAt14 }
	pipeline.Sleep = func(time.Duration) {}

	return &pipelineFixture{
		messages:      messages,
		newsletters:   newsletters,
		subscriptions: subscriptions,
		sendings:      sendings,
		mail:          mail,
		pipeline:      pipeline,
		message:       message,
	}
}

func (f *pipelineFixture) subscribe(n int) {
	for i := 0; i < n; i++ {
		email := fmt.Sprintf("user%d@example.org", i)
		f.subscriptions.subs[email] = &model.NewsletterSubscription{
			ID:               i + 1,
			NewsletterID:     1,
			Email:            email,
			HTML:             true,
			DateSubscription: wednesdayAt14.AddDate(0, -1, 0),
			Activable:        model.Activable{IsActive: true},
		}
	}
}

func TestStartSendingSynchronous(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscribe(5)

	result, err := f.pipeline.StartSending(f.message, false)
	if err != nil {
		t.Fatal(err)
	}
	if result != "Message sent" {
		t.Errorf("unexpected result: %q", result)
	}

	if len(f.mail.sent) != 5 {
		t.Fatalf("expected 5 emails, got %d", len(f.mail.sent))
	}
	if len(f.sendings.sendings) != 1 {
		t.Fatalf("expected 1 sending record, got %d", len(f.sendings.sendings))
	}
	if f.sendings.sendings[0].Recipients != 5 {
		t.Errorf("expected 5 recorded recipients, got %d", f.sendings.sendings[0].Recipients)
	}
	if f.messages.sending[1] {
		t.Error("sending flag must be cleared after the send")
	}

	// The rendered issue is archived under the media root.
	if f.sendings.sendings[0].HTMLFile == "" {
		t.Error("expected an archived html file path")
	}
	if _, err := os.Stat(f.sendings.sendings[0].HTMLFile); err != nil {
		t.Errorf("archived html file missing: %v", err)
	}
}

func TestStartSendingLargeAudienceQueues(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscribe(150)

	result, err := f.pipeline.StartSending(f.message, false)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(result, "queued") {
		t.Errorf("expected a queued result, got %q", result)
	}

	if len(f.mail.sent) != 0 {
		t.Errorf("queued send must not dispatch emails, got %d", len(f.mail.sent))
	}
	if len(f.sendings.sendings) != 0 {
		t.Error("queued send must not record a sending")
	}
	if !f.messages.queued[1] {
		t.Error("expected the queued flag to be set")
	}
}

func TestSendWhileAlreadySending(t *testing.T) {
	f := newPipelineFixture(t)
	f.messages.sending[1] = true

	err := f.pipeline.Send(f.message, false, nil)
	if err == nil {
		t.Fatal("expected an error while another send is in flight")
	}
	if !errors.As(err, new(*appErrors.AlreadySendingError)) {
		t.Errorf("expected AlreadySendingError, got %v", err)
	}
	if !f.messages.sending[1] {
		t.Error("the competing send's flag must not be touched")
	}
}

func TestSendClearsFlagOnRenderFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscribe(1)
	f.message.Template = "missing.html"

	if err := f.pipeline.Send(f.message, false, nil); err == nil {
		t.Fatal("expected a render error")
	}
	if f.messages.sending[1] {
		t.Error("sending flag must be cleared after a failed send")
	}
	if len(f.sendings.sendings) != 0 {
		t.Error("failed send must not record a sending")
	}
}

func TestSendToleratesRecipientFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscribe(3)
	f.mail.failFor = map[string]bool{"user1@example.org": true}

	if err := f.pipeline.Send(f.message, false, nil); err != nil {
		t.Fatal(err)
	}

	if len(f.mail.sent) != 2 {
		t.Errorf("expected 2 delivered emails, got %d", len(f.mail.sent))
	}
	// The record counts the resolved audience, not the delivery outcomes.
	if len(f.sendings.sendings) != 1 || f.sendings.sendings[0].Recipients != 3 {
		t.Errorf("sending record should count the resolved recipients, got %+v", f.sendings.sendings)
	}
}

func TestSendPacing(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscribe(4)
	f.pipeline.Config.Newsletter.SendEmailDelay = 1
	f.pipeline.Config.Newsletter.SendEmailGroup = 2
	f.pipeline.Config.Newsletter.SendEmailGroupDelay = 5

	var sleeps []time.Duration
	f.pipeline.Sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	if err := f.pipeline.Send(f.message, false, nil); err != nil {
		t.Fatal(err)
	}

	// Per-recipient delay before every send; the group delay comes on
	// top of it on every 2nd recipient.
	expected := []time.Duration{
		1 * time.Second,
		1 * time.Second, 5 * time.Second,
		1 * time.Second,
		1 * time.Second, 5 * time.Second,
	}
	if len(sleeps) != len(expected) {
		t.Fatalf("expected %d sleeps, got %d (%v)", len(expected), len(sleeps), sleeps)
	}
	for i, d := range expected {
		if sleeps[i] != d {
			t.Errorf("sleep %d: expected %s, got %s", i, d, sleeps[i])
		}
	}
}

func TestStartSendingTestLargeAudienceQueues(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscriptions.testRecipients = []model.Recipient{
		{Email: "editor@example.org", HTML: true},
	}
	f.pipeline.Config.Newsletter.MaxRecipientsForManualSending = 0

	result, err := f.pipeline.StartSending(f.message, true)
	if err != nil {
		t.Fatal(err)
	}
	if result != "Test message queued for the next submission" {
		t.Errorf("unexpected result: %q", result)
	}
	if !f.messages.queuedTest[1] {
		t.Error("expected queued_test to be set")
	}
	if f.messages.queued[1] {
		t.Error("the normal queued flag must not be touched")
	}
}

func TestSendTest(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscribe(10)
	f.subscriptions.testRecipients = []model.Recipient{
		{FirstName: "Ada", Email: "editor@example.org", HTML: true},
	}
	f.messages.queuedTest[1] = true

	result, err := f.pipeline.StartSending(f.message, true)
	if err != nil {
		t.Fatal(err)
	}
	if result != "Test message sent" {
		t.Errorf("unexpected result: %q", result)
	}

	if len(f.mail.sent) != 1 || f.mail.sent[0].To != "editor@example.org" {
		t.Fatalf("test send must reach only the test recipients, got %+v", f.mail.sent)
	}
	if len(f.sendings.sendings) != 0 {
		t.Error("test send must not record a sending")
	}
	if f.messages.queuedTest[1] {
		t.Error("queued_test must be cleared after a test send")
	}
}

func TestSendHTMLPreference(t *testing.T) {
	f := newPipelineFixture(t)
	f.subscriptions.subs["plain@example.org"] = &model.NewsletterSubscription{
		ID: 1, NewsletterID: 1, Email: "plain@example.org", HTML: false,
		DateSubscription: wednesdayAt14.AddDate(0, -1, 0),
		Activable:        model.Activable{IsActive: true},
	}

	if err := f.pipeline.Send(f.message, false, nil); err != nil {
		t.Fatal(err)
	}

	if len(f.mail.sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(f.mail.sent))
	}
	if f.mail.sent[0].HTML != "" {
		t.Error("plain-text subscriber must not receive an html body")
	}
	if f.mail.sent[0].Text == "" {
		t.Error("plain-text subscriber must receive a text body")
	}
}
