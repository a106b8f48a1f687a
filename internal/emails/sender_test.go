package emails

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webinarwins/backend/internal/models"
)

var testNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func newTestSender(store *memStore, src *fakeAttendees, ch *fakeChannel) *Sender {
	s := NewSender(store, src, ch, SenderIdentity{FromName: "Dana", FromEmail: "dana@example.com"}, 5, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func seededEmail(t *testing.T, store *memStore, a models.Attendee) *models.GeneratedEmail {
	t.Helper()
	e := &models.GeneratedEmail{AttendeeID: a.ID, Subject: "Hello there", Body: "<p>Hi</p>", EngagementTier: a.EngagementTier}
	require.NoError(t, store.Upsert(context.Background(), e))
	return e
}

func TestSendMarksSentAndRejectsResend(t *testing.T) {
	owner := uuid.New()
	a := person("Jo", models.TierHot, 87)
	store := newMemStore(owner, uuid.New(), []models.Attendee{a})
	ch := &fakeChannel{}
	s := newTestSender(store, &fakeAttendees{}, ch)
	e := seededEmail(t, store, a)
	ctx := context.Background()

	res, err := s.Send(ctx, owner, e.ID, nil)
	require.NoError(t, err)
	assert.False(t, res.TestSend)
	assert.Equal(t, "jo@example.com", res.To)
	require.Len(t, ch.sent, 1)
	assert.True(t, ch.sent[0].HTML)
	assert.Equal(t, "Dana", ch.sent[0].FromName)
	assert.True(t, store.emails[a.ID].IsSent())
	assert.Equal(t, testNow, *store.emails[a.ID].SentAt)

	_, err = s.Send(ctx, owner, e.ID, nil)
	assert.ErrorIs(t, err, ErrAlreadySent)

	res, err = s.Send(ctx, owner, e.ID, &SendOverride{To: "me@example.com"})
	require.NoError(t, err)
	assert.True(t, res.TestSend)
	assert.Equal(t, "me@example.com", ch.sent[1].To)
	assert.Equal(t, "Hello there", ch.sent[1].Subject)
}

func TestTestSendDoesNotMarkSent(t *testing.T) {
	owner := uuid.New()
	a := person("Jo", models.TierHot, 87)
	store := newMemStore(owner, uuid.New(), []models.Attendee{a})
	s := newTestSender(store, &fakeAttendees{}, &fakeChannel{})
	e := seededEmail(t, store, a)

	_, err := s.Send(context.Background(), owner, e.ID, &SendOverride{Subject: "[TEST] Hello"})
	require.NoError(t, err)
	assert.False(t, store.emails[a.ID].IsSent())
}

func TestSendErrors(t *testing.T) {
	owner := uuid.New()
	a := person("Jo", models.TierHot, 87)
	store := newMemStore(owner, uuid.New(), []models.Attendee{a})
	e := seededEmail(t, store, a)
	ctx := context.Background()

	_, err := newTestSender(store, &fakeAttendees{}, &fakeChannel{}).Send(ctx, uuid.New(), e.ID, nil)
	assert.ErrorIs(t, err, ErrNotFound, "other owners see nothing")

	_, err = NewSender(store, &fakeAttendees{}, nil, SenderIdentity{}, 5, nil).Send(ctx, owner, e.ID, nil)
	assert.ErrorIs(t, err, ErrChannelNotConfigured)

	failing := &fakeChannel{err: errors.New("smtp 554")}
	_, err = newTestSender(store, &fakeAttendees{}, failing).Send(ctx, owner, e.ID, nil)
	require.Error(t, err)
	assert.False(t, store.emails[a.ID].IsSent())
}

func TestBulkSendNoShowTemplate(t *testing.T) {
	owner := uuid.New()
	w := testWebinar(owner)
	list := []models.Attendee{
		person("Sam", models.TierNoShow, 0),
		person("Kim", models.TierNoShow, 0),
		person("Jo", models.TierHot, 87),
	}
	store := newMemStore(owner, w.ID, list)
	ch := &fakeChannel{}
	s := newTestSender(store, &fakeAttendees{list: list}, ch)
	ctx := context.Background()

	_, err := s.BulkSendNoShowTemplate(ctx, w)
	assert.ErrorIs(t, err, ErrNoTemplate)

	w.NoShowTemplate = &models.EmailTemplate{Subject: "We missed you, {name}", Body: "Catch the replay: {replay_url}"}
	kim := seededEmail(t, store, list[1])
	require.NoError(t, store.MarkSent(ctx, kim.ID, testNow))

	report, err := s.BulkSendNoShowTemplate(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Sent)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "sam@example.com", ch.sent[0].To)
	assert.Equal(t, "We missed you, Sam", ch.sent[0].Subject)

	stored := store.emails[list[0].ID]
	assert.True(t, stored.IsSent())
	assert.Equal(t, models.GenerationMethodTemplateBulk, stored.Metadata.GenerationMethod)
}
