package service_test

import (
	"fmt"
	"time"

	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/mailer"
	"github.com/UniversitaDellaCalabria/unicms-newsletter/internal/model"
)

// Mock repositories shared by the service tests.

type mockMessageRepo struct {
	messages     map[int]*model.Message
	webpaths     []model.MessageWebpath
	categories   []model.Category
	evidence     []model.MessagePublicationContext
	singles      []model.MessagePublicationContext
	publications []model.Publication
	calContexts  []model.MessageCalendarContext
	attachments  []model.MessageAttachment

	sending     map[int]bool
	sendingTest map[int]bool
	queued      map[int]bool
	queuedTest  map[int]bool
}

func newMockMessageRepo() *mockMessageRepo {
	return &mockMessageRepo{
		messages:    map[int]*model.Message{},
		sending:     map[int]bool{},
		sendingTest: map[int]bool{},
		queued:      map[int]bool{},
		queuedTest:  map[int]bool{},
	}
}

func (m *mockMessageRepo) Create(msg *model.Message) error {
	msg.ID = len(m.messages) + 1
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockMessageRepo) Update(msg *model.Message) error {
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockMessageRepo) GetByID(id int) (*model.Message, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d not found", id)
	}
	return msg, nil
}

func (m *mockMessageRepo) ListMessages(offset, limit, newsletterID int) ([]*model.Message, int, error) {
	return nil, 0, nil
}

func (m *mockMessageRepo) ListSendable() ([]*model.Message, error) {
	messages := []*model.Message{}
	for _, msg := range m.messages {
		messages = append(messages, msg)
	}
	return messages, nil
}

func (m *mockMessageRepo) flags(test bool) (map[int]bool, map[int]bool) {
	if test {
		return m.sendingTest, m.queuedTest
	}
	return m.sending, m.queued
}

func (m *mockMessageRepo) TryMarkSending(id int, test bool) (bool, error) {
	sending, _ := m.flags(test)
	if sending[id] {
		return false, nil
	}
	sending[id] = true
	return true, nil
}

func (m *mockMessageRepo) ClearSending(id int, test bool) error {
	sending, _ := m.flags(test)
	sending[id] = false
	return nil
}

func (m *mockMessageRepo) MarkQueued(id int, test bool) error {
	_, queued := m.flags(test)
	queued[id] = true
	return nil
}

func (m *mockMessageRepo) ClearQueued(id int, test bool) error {
	_, queued := m.flags(test)
	queued[id] = false
	return nil
}

func (m *mockMessageRepo) GetWebpaths(messageID int) ([]model.MessageWebpath, error) {
	return m.webpaths, nil
}

func (m *mockMessageRepo) GetCategories(messageID int) ([]model.Category, error) {
	return m.categories, nil
}

func (m *mockMessageRepo) GetPublications(messageID int) ([]model.Publication, error) {
	return m.publications, nil
}

func (m *mockMessageRepo) GetPublicationContexts(messageID int, inEvidence bool) ([]model.MessagePublicationContext, error) {
	if inEvidence {
		return m.evidence, nil
	}
	return m.singles, nil
}

func (m *mockMessageRepo) GetCalendarContexts(messageID int) ([]model.MessageCalendarContext, error) {
	return m.calContexts, nil
}

func (m *mockMessageRepo) GetAttachments(messageID int) ([]model.MessageAttachment, error) {
	return m.attachments, nil
}

type mockSendingRepo struct {
	sendings []model.MessageSending
}

func (m *mockSendingRepo) Create(s *model.MessageSending) error {
	s.ID = len(m.sendings) + 1
	m.sendings = append(m.sendings, *s)
	return nil
}

func (m *mockSendingRepo) GetLast(messageID int) (*model.MessageSending, error) {
	var last *model.MessageSending
	for i := range m.sendings {
		s := m.sendings[i]
		if s.MessageID != messageID {
			continue
		}
		if last == nil || s.Date.After(last.Date) {
			last = &m.sendings[i]
		}
	}
	return last, nil
}

func (m *mockSendingRepo) ListByMessage(messageID int) ([]model.MessageSending, error) {
	result := []model.MessageSending{}
	for _, s := range m.sendings {
		if s.MessageID == messageID {
			result = append(result, s)
		}
	}
	return result, nil
}

type mockContentProvider struct {
	categories []model.Category
	news       map[int][]model.PublicationContext
	events     map[int][]model.CalendarEvent
}

func (m *mockContentProvider) AllCategories() ([]model.Category, error) {
	return m.categories, nil
}

func (m *mockContentProvider) WebpathNews(webpathID int) ([]model.PublicationContext, error) {
	return m.news[webpathID], nil
}

func (m *mockContentProvider) CalendarEvents(calendarID int) ([]model.CalendarEvent, error) {
	return m.events[calendarID], nil
}

type mockNewsletterRepo struct {
	newsletters map[int]*model.Newsletter
}

func (m *mockNewsletterRepo) Create(n *model.Newsletter) error {
	n.ID = len(m.newsletters) + 1
	m.newsletters[n.ID] = n
	return nil
}

func (m *mockNewsletterRepo) Update(n *model.Newsletter) error {
	m.newsletters[n.ID] = n
	return nil
}

func (m *mockNewsletterRepo) GetByID(id int) (*model.Newsletter, error) {
	n, ok := m.newsletters[id]
	if !ok {
		return nil, fmt.Errorf("newsletter %d not found", id)
	}
	return n, nil
}

func (m *mockNewsletterRepo) GetActiveBySlug(slug string) (*model.Newsletter, error) {
	for _, n := range m.newsletters {
		if n.Slug == slug && n.IsActive {
			return n, nil
		}
	}
	return nil, fmt.Errorf("newsletter %q not found", slug)
}

func (m *mockNewsletterRepo) List(publicOnly bool) ([]model.Newsletter, error) {
	newsletters := []model.Newsletter{}
	for _, n := range m.newsletters {
		if publicOnly && !n.IsPublic {
			continue
		}
		newsletters = append(newsletters, *n)
	}
	return newsletters, nil
}

type mockSubscriptionRepo struct {
	subs           map[string]*model.NewsletterSubscription
	testRecipients []model.Recipient
}

func newMockSubscriptionRepo() *mockSubscriptionRepo {
	return &mockSubscriptionRepo{subs: map[string]*model.NewsletterSubscription{}}
}

func (m *mockSubscriptionRepo) GetByNewsletterAndEmail(newsletterID int, email string) (*model.NewsletterSubscription, error) {
	return m.subs[email], nil
}

func (m *mockSubscriptionRepo) Create(s *model.NewsletterSubscription) error {
	s.ID = len(m.subs) + 1
	m.subs[s.Email] = s
	return nil
}

func (m *mockSubscriptionRepo) Update(s *model.NewsletterSubscription) error {
	m.subs[s.Email] = s
	return nil
}

func (m *mockSubscriptionRepo) GetValidRecipients(newsletterID int, test bool) ([]model.Recipient, error) {
	if test {
		return m.testRecipients, nil
	}
	subs := []model.NewsletterSubscription{}
	for _, s := range m.subs {
		subs = append(subs, *s)
	}
	recipients := []model.Recipient{}
	for _, s := range model.ValidSubscribers(subs) {
		recipients = append(recipients, model.Recipient{
			FirstName: s.FirstName,
			LastName:  s.LastName,
			Email:     s.Email,
			HTML:      s.HTML,
		})
	}
	return recipients, nil
}

type mockMailer struct {
	sent    []mailer.OutgoingMail
	failFor map[string]bool
}

func (m *mockMailer) Send(mail mailer.OutgoingMail) error {
	if m.failFor[mail.To] {
		return fmt.Errorf("smtp rejected %s", mail.To)
	}
	m.sent = append(m.sent, mail)
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(i int) *int              { return &i }
func strPtr(s string) *string        { return &s }
