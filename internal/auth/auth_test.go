package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webinarwins/backend/internal/models"
)

func TestJWTRoundTrip(t *testing.T) {
	svc := NewJWTService("secret", 1)
	id := uuid.New()
	token, err := svc.Generate(id, "owner@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "owner@example.com", claims.Email)
}

func TestJWTRejectsExpiredAndForeignTokens(t *testing.T) {
	svc := NewJWTService("secret", 1)
	token, err := svc.Generate(uuid.New(), "owner@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewJWTService("other-secret", 1)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

type memUsers struct {
	byEmail map[string]*models.User
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := m.byEmail[strings.ToLower(email)]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *memUsers) Create(_ context.Context, email, hash, name string) (*models.User, error) {
	email = strings.ToLower(email)
	if _, ok := m.byEmail[email]; ok {
		return nil, ErrEmailTaken
	}
	u := &models.User{ID: uuid.New(), Email: email, Password: hash, FullName: name}
	m.byEmail[email] = u
	return u, nil
}

func post(r *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterAndLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(&memUsers{byEmail: map[string]*models.User{}}, NewJWTService("secret", 1), nil)
	r := gin.New()
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)

	w := post(r, "/auth/register", RegisterRequest{Email: "Dana@Example.com", Password: "long enough", FullName: "Dana"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = post(r, "/auth/register", RegisterRequest{Email: "dana@example.com", Password: "long enough", FullName: "Dana"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = post(r, "/auth/register", RegisterRequest{Email: "sam@example.com", Password: "short", FullName: "Sam"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post(r, "/auth/login", LoginRequest{Email: "dana@example.com", Password: "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(r, "/auth/login", LoginRequest{Email: "dana@example.com", Password: "long enough"})
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Token)
	assert.Equal(t, "dana@example.com", body.Data.User.Email)
}
