package emails

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/mailer"
	"github.com/webinarwins/backend/pkg/retry"
)

type memStore struct {
	mu        sync.Mutex
	owner     uuid.UUID
	webinarID uuid.UUID
	people    map[uuid.UUID]models.Attendee
	emails    map[uuid.UUID]*models.GeneratedEmail // keyed by attendee
	upserts   int
}

func newMemStore(owner, webinarID uuid.UUID, list []models.Attendee) *memStore {
	s := &memStore{owner: owner, webinarID: webinarID, people: map[uuid.UUID]models.Attendee{},
		emails: map[uuid.UUID]*models.GeneratedEmail{}}
	for _, a := range list {
		s.people[a.ID] = a
	}
	return s
}

func (s *memStore) Upsert(_ context.Context, e *models.GeneratedEmail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	now := time.Now()
	if old, ok := s.emails[e.AttendeeID]; ok {
		e.ID, e.SentStatus, e.SentAt, e.CreatedAt = old.ID, old.SentStatus, old.SentAt, old.CreatedAt
	} else {
		e.ID, e.SentStatus, e.CreatedAt = uuid.New(), models.SentStatusUnsent, now
	}
	e.UserEdited = false
	e.UpdatedAt = now
	cp := *e
	s.emails[e.AttendeeID] = &cp
	return nil
}

func (s *memStore) ExistingAttendees(context.Context, uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for id := range s.emails {
		out[id] = true
	}
	return out, nil
}

func (s *memStore) SentAttendees(context.Context, uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for id, e := range s.emails {
		if e.IsSent() {
			out[id] = true
		}
	}
	return out, nil
}

func (s *memStore) withRecipient(e *models.GeneratedEmail) models.EmailWithRecipient {
	a := s.people[e.AttendeeID]
	return models.EmailWithRecipient{GeneratedEmail: *e, AttendeeName: a.Name, AttendeeEmail: a.Email, WebinarID: s.webinarID}
}

func (s *memStore) ListByWebinar(context.Context, uuid.UUID) ([]models.EmailWithRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.EmailWithRecipient
	for _, e := range s.emails {
		out = append(out, s.withRecipient(e))
	}
	return out, nil
}

func (s *memStore) byID(id uuid.UUID) *models.GeneratedEmail {
	for _, e := range s.emails {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *memStore) GetForOwner(_ context.Context, id, userID uuid.UUID) (*models.EmailWithRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byID(id)
	if e == nil || userID != s.owner {
		return nil, ErrNotFound
	}
	r := s.withRecipient(e)
	return &r, nil
}

func (s *memStore) UpdateContent(_ context.Context, id uuid.UUID, subject, body, notes *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byID(id)
	if e == nil {
		return ErrNotFound
	}
	if subject != nil {
		e.Subject, e.UserEdited = *subject, true
	}
	if body != nil {
		e.Body, e.UserEdited = *body, true
	}
	if notes != nil {
		e.UserNotes = *notes
	}
	return nil
}

func (s *memStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.byID(id)
	if e == nil {
		return ErrNotFound
	}
	e.SentStatus, e.SentAt = models.SentStatusSent, &at
	return nil
}

type fakeAttendees struct {
	list []models.Attendee
	msgs map[uuid.UUID][]models.ChatMessage
}

func (f *fakeAttendees) ListByWebinar(_ context.Context, _ uuid.UUID, tier *models.Tier) ([]models.Attendee, error) {
	var out []models.Attendee
	for _, a := range f.list {
		if tier == nil || a.EngagementTier == *tier {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAttendees) MessagesByWebinar(context.Context, uuid.UUID) (map[uuid.UUID][]models.ChatMessage, error) {
	return f.msgs, nil
}

type fakeChannel struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (f *fakeChannel) Send(_ context.Context, msg mailer.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return fmt.Sprintf("msg-%d", len(f.sent)), nil
}

func words(n int) string {
	w := make([]string, n)
	for i := range w {
		w[i] = "word"
	}
	return strings.Join(w, " ")
}

// validOutput is oracle text that parses and passes the default rules.
func validOutput(subject string) string {
	return "Subject: " + subject + "\n\n" + words(40) + "\n\n" + words(30) + "\n\n---\nSELECTED VERSION PROBABILITY: 12%"
}

var noWait = retry.Policy{
	MaxAttempts: 3,
	BaseDelay:   time.Second,
	Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
}

func testConfig() GeneratorConfig {
	cfg := DefaultGeneratorConfig()
	cfg.SenderName = "Dana"
	cfg.Retry = noWait
	return cfg
}

func testWebinar(owner uuid.UUID) *models.Webinar {
	price := 497.0
	return &models.Webinar{
		ID:     uuid.New(),
		UserID: owner,
		Title:  "Scaling Calm",
		Topic:  "calm growth",
		Offer: models.Offer{
			Name:        "Calm Accelerator",
			Description: "eight week cohort",
			Price:       &price,
			Deadline:    "Friday",
			ReplayURL:   "http://replay.example/1",
		},
	}
}

func person(name string, tier models.Tier, score int) models.Attendee {
	return models.Attendee{
		ID:              uuid.New(),
		Name:            name,
		Email:           strings.ToLower(name) + "@example.com",
		Attended:        tier != models.TierNoShow,
		EngagementScore: score,
		EngagementTier:  tier,
	}
}
