package attendees

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webinarwins/backend/internal/models"
)

type fakeStore struct {
	attendees []models.Attendee
	messages  map[uuid.UUID][]models.ChatMessage
	updated   []models.Attendee
}

func (f *fakeStore) ListByWebinar(_ context.Context, _ uuid.UUID, tier *models.Tier) ([]models.Attendee, error) {
	var out []models.Attendee
	for _, a := range f.attendees {
		if tier == nil || a.EngagementTier == *tier {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) MessagesByWebinar(context.Context, uuid.UUID) (map[uuid.UUID][]models.ChatMessage, error) {
	return f.messages, nil
}

func (f *fakeStore) UpdateScores(_ context.Context, list []models.Attendee) error {
	f.updated = append(f.updated, list...)
	return nil
}

func TestRescoreUpdatesOnlyChangedAttendees(t *testing.T) {
	stale := models.Attendee{ID: uuid.New(), Name: "Stale", Attended: true, FocusPercent: 80, AttendancePercent: 95,
		EngagementScore: 57, EngagementTier: models.TierCool}
	fresh := models.Attendee{ID: uuid.New(), Name: "Fresh", Attended: false, EngagementScore: 0, EngagementTier: models.TierNoShow}
	store := &fakeStore{
		attendees: []models.Attendee{stale, fresh},
		messages: map[uuid.UUID][]models.ChatMessage{
			stale.ID: {
				{Text: "a?", IsQuestion: true}, {Text: "b?", IsQuestion: true},
				{Text: "c"}, {Text: "d"}, {Text: "e"}, {Text: "f"},
			},
		},
	}

	res, err := NewService(store, nil).Rescore(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attendees)
	assert.Equal(t, 1, res.Changed)
	assert.Equal(t, 1, res.TierCounts["Hot Lead"])
	assert.Equal(t, 1, res.TierCounts["No-Show"])

	require.Len(t, store.updated, 1)
	assert.Equal(t, stale.ID, store.updated[0].ID)
	assert.Equal(t, 87, store.updated[0].EngagementScore)
	assert.Equal(t, models.TierHot, store.updated[0].EngagementTier)
	assert.Equal(t, 6, store.updated[0].MessageCount)
	assert.Equal(t, 2, store.updated[0].QuestionCount)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []models.Attendee{
		{Name: "Jo, Jr.", Email: "jo@x.com", Attended: true, AttendancePercent: 95, FocusPercent: 80.5,
			AttendanceMinutes: 57, MessageCount: 6, QuestionCount: 2, EngagementScore: 87, EngagementTier: models.TierHot},
	})
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exportHeader, records[0])
	assert.Equal(t, []string{"Jo, Jr.", "jo@x.com", "Yes", "95", "80.5", "57", "6", "2", "87", "Hot Lead"}, records[1])
}

func TestHandlerListFiltersByTier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeStore{attendees: []models.Attendee{
		{ID: uuid.New(), Name: "Hot", EngagementTier: models.TierHot},
		{ID: uuid.New(), Name: "Cold", EngagementTier: models.TierCold},
	}}
	h := NewHandler(store, NewService(store, nil), nil)
	router := gin.New()
	router.GET("/webinars/:id/attendees", h.ListByWebinar)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/webinars/"+uuid.NewString()+"/attendees?tier=hot-lead", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool              `json:"success"`
		Data    []models.Attendee `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "Hot", body.Data[0].Name)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/webinars/"+uuid.NewString()+"/attendees?tier=lukewarm", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCopyRowsNumbersMessagesInChatOrder(t *testing.T) {
	webinarID := uuid.New()
	items := []Aggregated{
		{
			Attendee: models.Attendee{Name: "A", Email: "a@x.com"},
			Messages: []models.ChatMessage{{Text: "first"}, {Text: "second"}, {Text: "third"}},
		},
		{
			Attendee: models.Attendee{Name: "B", Email: "b@x.com"},
			Messages: []models.ChatMessage{{Text: "only"}},
		},
	}

	attendeeRows, messageRows := copyRows(webinarID, items)
	require.Len(t, attendeeRows, 2)
	require.Len(t, messageRows, 4)

	for i, want := range []struct {
		attendee uuid.UUID
		seq      int
		text     string
	}{
		{items[0].Attendee.ID, 0, "first"},
		{items[0].Attendee.ID, 1, "second"},
		{items[0].Attendee.ID, 2, "third"},
		{items[1].Attendee.ID, 0, "only"},
	} {
		assert.Equal(t, want.attendee, messageRows[i][1])
		assert.Equal(t, want.seq, messageRows[i][2])
		assert.Equal(t, want.text, messageRows[i][3])
	}
	assert.Equal(t, webinarID, items[1].Attendee.WebinarID)
	assert.NotEqual(t, uuid.Nil, items[0].Messages[2].ID)
}
