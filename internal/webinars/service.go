package webinars

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/webinarwins/backend/internal/attendees"
	"github.com/webinarwins/backend/internal/csvimport"
	"github.com/webinarwins/backend/internal/models"
	"github.com/webinarwins/backend/pkg/storage"
)

var (
	// ErrInvalidUpload wraps CSV problems that reject an upload as a whole.
	ErrInvalidUpload = errors.New("invalid upload")
	// ErrArchiveDisabled is returned when no upload storage is configured.
	ErrArchiveDisabled = errors.New("upload archive not configured")
)

// Store is the webinar persistence the service and handler need.
type Store interface {
	Create(ctx context.Context, w *models.Webinar, items []attendees.Aggregated) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Webinar, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Webinar, error)
	Update(ctx context.Context, w *models.Webinar) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context, id uuid.UUID) (*models.WebinarStats, error)
}

// Archive keeps the raw CSV files of a webinar. *storage.S3 satisfies it.
type Archive interface {
	ArchiveUpload(ctx context.Context, webinarID, kind string, data []byte) (string, error)
	DeleteUploads(ctx context.Context, webinarID string) error
	UploadURL(ctx context.Context, webinarID, kind string) (string, error)
}

// Diagnostics counts rows that were dropped or merged during ingestion.
type Diagnostics struct {
	DroppedAttendanceRows int `json:"dropped_attendance_rows"`
	DroppedChatRows       int `json:"dropped_chat_rows"`
	MissingEmailRows      int `json:"missing_email_rows"`
	DuplicateEmails       int `json:"duplicate_emails"`
	UnmatchedMessages     int `json:"unmatched_messages"`
}

// IngestResult is returned after a webinar upload.
type IngestResult struct {
	Webinar     *models.Webinar      `json:"webinar"`
	Stats       *models.WebinarStats `json:"stats"`
	Diagnostics Diagnostics          `json:"diagnostics"`
	Archived    []string             `json:"archived,omitempty"`
}

// Service sequences CSV parsing, aggregation and persistence of a webinar.
type Service struct {
	store   Store
	archive Archive
	logger  *zap.Logger
}

// NewService creates a webinar service. archive may be nil.
func NewService(store Store, archive Archive, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, archive: archive, logger: logger}
}

// Ingest parses both exports, scores every attendee and stores the webinar
// with its attendees in one transaction. A parse error aborts the upload and
// nothing is stored. chat may be empty.
func (s *Service) Ingest(ctx context.Context, w *models.Webinar, attendance, chat []byte) (*IngestResult, error) {
	rows, droppedAttendance, err := csvimport.ParseAttendance(bytes.NewReader(attendance))
	if err != nil {
		return nil, fmt.Errorf("%w: attendance: %v", ErrInvalidUpload, err)
	}
	var chatRows []csvimport.ChatRow
	droppedChat := 0
	if len(bytes.TrimSpace(chat)) > 0 {
		chatRows, droppedChat, err = csvimport.ParseChat(bytes.NewReader(chat))
		if err != nil {
			return nil, fmt.Errorf("%w: chat: %v", ErrInvalidUpload, err)
		}
	}

	items, agg := attendees.Aggregate(rows, chatRows)
	if err := s.store.Create(ctx, w, items); err != nil {
		return nil, fmt.Errorf("store webinar: %w", err)
	}

	res := &IngestResult{
		Webinar: w,
		Stats:   StatsFromAggregate(items, agg),
		Diagnostics: Diagnostics{
			DroppedAttendanceRows: droppedAttendance,
			DroppedChatRows:       droppedChat,
			MissingEmailRows:      agg.MissingEmailRows,
			DuplicateEmails:       agg.DuplicateEmails,
			UnmatchedMessages:     agg.UnmatchedMessages,
		},
	}
	res.Archived = s.archiveUploads(ctx, w.ID, attendance, chat)

	s.logger.Info("webinar ingested",
		zap.String("webinar_id", w.ID.String()),
		zap.Int("registrants", res.Stats.TotalRegistrants),
		zap.Int("attended", res.Stats.TotalAttended),
		zap.Int("messages", res.Stats.TotalMessages),
		zap.Int("unmatched_messages", agg.UnmatchedMessages),
	)
	return res, nil
}

// archiveUploads copies the raw files to storage. Failures are logged only.
func (s *Service) archiveUploads(ctx context.Context, webinarID uuid.UUID, attendance, chat []byte) []string {
	if s.archive == nil {
		return nil
	}
	files := []struct {
		kind string
		data []byte
	}{
		{storage.KindAttendance, attendance},
		{storage.KindChat, chat},
	}
	keys := make([]string, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		if len(f.data) == 0 {
			continue
		}
		g.Go(func() error {
			key, err := s.archive.ArchiveUpload(gctx, webinarID.String(), f.kind, f.data)
			if err != nil {
				return fmt.Errorf("%s: %w", f.kind, err)
			}
			keys[i] = key
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("archive uploads", zap.String("webinar_id", webinarID.String()), zap.Error(err))
	}
	var out []string
	for _, k := range keys {
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}

// StatsFromAggregate builds webinar statistics from a fresh aggregation run.
func StatsFromAggregate(items []attendees.Aggregated, agg attendees.Stats) *models.WebinarStats {
	s := &models.WebinarStats{
		TotalRegistrants: agg.TotalRegistrants,
		TotalAttended:    agg.TotalAttended,
		TotalMessages:    agg.TotalMessages,
		TierCounts:       make(map[string]int, len(agg.TierCounts)),
	}
	for k, v := range agg.TierCounts {
		s.TierCounts[k] = v
	}
	var focus, attendance float64
	for _, it := range items {
		if it.Attendee.Attended {
			focus += it.Attendee.FocusPercent
			attendance += it.Attendee.AttendancePercent
		}
	}
	if agg.TotalAttended > 0 {
		s.AvgFocusPercent = focus / float64(agg.TotalAttended)
		s.AvgAttendancePct = attendance / float64(agg.TotalAttended)
	}
	FinishStats(s)
	return s
}

// Delete removes the webinar and, best effort, its archived uploads.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if s.archive != nil {
		if err := s.archive.DeleteUploads(ctx, id.String()); err != nil {
			s.logger.Warn("delete archived uploads", zap.String("webinar_id", id.String()), zap.Error(err))
		}
	}
	s.logger.Info("webinar deleted", zap.String("webinar_id", id.String()))
	return nil
}

// UploadURL returns a temporary download link for an archived file.
func (s *Service) UploadURL(ctx context.Context, id uuid.UUID, kind string) (string, error) {
	if s.archive == nil {
		return "", ErrArchiveDisabled
	}
	return s.archive.UploadURL(ctx, id.String(), kind)
}
