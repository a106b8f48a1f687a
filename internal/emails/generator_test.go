package emails

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webinarwins/backend/config"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/oracle"
)

func scripted(calls *int32, outputs ...string) oracle.Oracle {
	return oracle.Func(func(_ context.Context, req oracle.Request) (*oracle.Response, error) {
		n := int(atomic.AddInt32(calls, 1)) - 1
		if n >= len(outputs) {
			n = len(outputs) - 1
		}
		if outputs[n] == "" {
			return nil, errors.New("upstream timeout")
		}
		return &oracle.Response{Text: outputs[n], TokensUsed: 321, Model: "test-model"}, nil
	})
}

func TestGenerateTemplatePathSkipsOracle(t *testing.T) {
	var calls int32
	g := NewGenerator(scripted(&calls, validOutput("unused")), testConfig(), nil)
	w := testWebinar(uuid.New())
	w.NoShowTemplate = &models.EmailTemplate{Subject: "We missed you, {name}", Body: "Replay: {replay_url} {missing}"}
	a := person("Sam", models.TierNoShow, 0)

	e, err := g.Generate(context.Background(), &a, w, nil)
	require.NoError(t, err)
	assert.Equal(t, "We missed you, Sam", e.Subject)
	assert.Equal(t, "Replay: http://replay.example/1 {missing}", e.Body)
	assert.Equal(t, models.GenerationMethodTemplate, e.Metadata.GenerationMethod)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGenerateNoShowWithoutTemplateUsesOracle(t *testing.T) {
	var calls int32
	g := NewGenerator(scripted(&calls, validOutput("The replay is ready")), testConfig(), nil)
	a := person("Sam", models.TierNoShow, 0)

	e, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), nil)
	require.NoError(t, err)
	assert.Equal(t, models.GenerationMethodAI, e.Metadata.GenerationMethod)
	assert.EqualValues(t, 1, calls)
}

func TestGenerateAIMetadata(t *testing.T) {
	var calls int32
	g := NewGenerator(scripted(&calls, validOutput("Loved your question, [Name]")), testConfig(), nil)
	a := person("Jo", models.TierHot, 87)
	a.MessageCount, a.QuestionCount = 2, 1
	msgs := []models.ChatMessage{{Text: "How long is the cohort?", IsQuestion: true}, {Text: "great stuff"}}

	e, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), msgs)
	require.NoError(t, err)
	assert.Equal(t, "Loved your question, Jo", e.Subject)
	assert.Equal(t, a.ID, e.AttendeeID)
	assert.Equal(t, models.TierHot, e.EngagementTier)
	m := e.Metadata
	assert.Equal(t, models.GenerationMethodAI, m.GenerationMethod)
	assert.Equal(t, "test-model", m.Model)
	assert.Equal(t, 321, m.TokensUsed)
	assert.Equal(t, 12, m.Probability)
	assert.Equal(t, 2000, m.MaxTokens)
	assert.Equal(t, 0.8, m.Temperature)
	assert.Equal(t, 1, m.Attempts)
	require.Len(t, m.ChatReferences, 2)
	assert.True(t, m.ChatReferences[0].IsQuestion)
}

func TestGenerateRetriesOracleAndParseFailures(t *testing.T) {
	var calls int32
	g := NewGenerator(scripted(&calls, "", "no subject here", validOutput("Third time lucky")), testConfig(), nil)
	a := person("Jo", models.TierWarm, 65)

	e, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), nil)
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls)
	assert.Equal(t, 3, e.Metadata.Attempts)
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	var calls int32
	g := NewGenerator(scripted(&calls, ""), testConfig(), nil)
	a := person("Jo", models.TierWarm, 65)

	_, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream timeout")
	assert.EqualValues(t, 3, calls)
}

func TestGenerateDoesNotRetryValidationFailures(t *testing.T) {
	var calls int32
	short := "Subject: Hello friend\n\n" + words(10)
	g := NewGenerator(scripted(&calls, short, validOutput("never reached")), testConfig(), nil)
	a := person("Jo", models.TierCool, 45)

	_, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), nil)
	assert.ErrorIs(t, err, ErrValidation)
	assert.EqualValues(t, 1, calls)
}

func TestGenerateWithoutOracle(t *testing.T) {
	g := NewGenerator(nil, testConfig(), nil)
	a := person("Jo", models.TierHot, 90)
	_, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), nil)
	assert.ErrorIs(t, err, ErrOracleNotConfigured)
}

func TestGeneratePassesPromptAndParameters(t *testing.T) {
	var got oracle.Request
	o := oracle.Func(func(_ context.Context, req oracle.Request) (*oracle.Response, error) {
		got = req
		return &oracle.Response{Text: validOutput("Thanks for the question")}, nil
	})
	g := NewGenerator(o, testConfig(), nil)
	a := person("Jo", models.TierHot, 90)

	_, err := g.Generate(context.Background(), &a, testWebinar(uuid.New()), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got.System, "You are an expert email copywriter"))
	assert.Contains(t, got.Prompt, "Name: Jo")
	assert.Equal(t, 2000, got.MaxTokens)
	assert.Equal(t, 0.8, got.Temperature)
}

func TestGeneratorConfigFrom(t *testing.T) {
	cfg := GeneratorConfigFrom(config.AIConfig{
		MaxTokens:    1500,
		Temperature:  0.5,
		TimeoutSec:   12,
		MaxAttempts:  5,
		RetryBaseSec: 2,
		MaxBodyWords: 400,
	}, "Dana")

	assert.Equal(t, "Dana", cfg.SenderName)
	assert.Equal(t, 1500, cfg.MaxTokens)
	assert.Equal(t, 0.5, cfg.Temperature)
	assert.Equal(t, 12*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.ChatExcerpts, "unset values keep defaults")
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 400, cfg.Rules.MaxWords)
	assert.Equal(t, DefaultRules.MinWords, cfg.Rules.MinWords)
}
