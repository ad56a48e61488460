package usecase

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// Upload is one file handed to the ingestion service.
type Upload struct {
	FileName string
	Data     []byte
}

// IngestService validates uploads, creates trackers, and enqueues
// processing jobs. With the scheduler disabled it processes inline so
// single-node deployments need no worker.
type IngestService struct {
	cfg      config.Config
	queue    domain.QueueRepository
	trackers domain.TrackerRepository
	pipeline *Pipeline
}

// NewIngestService wires the ingestion dependencies.
func NewIngestService(cfg config.Config, queue domain.QueueRepository, trackers domain.TrackerRepository, pipeline *Pipeline) *IngestService {
	return &IngestService{cfg: cfg, queue: queue, trackers: trackers, pipeline: pipeline}
}

// UploadSingle validates and ingests one file, returning its tracker.
func (s *IngestService) UploadSingle(ctx domain.Context, up Upload) (domain.ProcessTracker, error) {
	correlationID := newCorrelationID()
	return s.ingest(ctx, up, correlationID)
}

// UploadBatch ingests several files under one correlation id. Validation
// errors fail the whole batch before anything is enqueued.
func (s *IngestService) UploadBatch(ctx domain.Context, ups []Upload) ([]domain.ProcessTracker, error) {
	if len(ups) == 0 {
		return nil, fmt.Errorf("op=ingest.UploadBatch: empty batch: %w", domain.ErrInvalidArgument)
	}
	for _, up := range ups {
		if err := s.validate(up); err != nil {
			return nil, err
		}
	}
	correlationID := newCorrelationID()
	out := make([]domain.ProcessTracker, 0, len(ups))
	for _, up := range ups {
		tracker, err := s.ingest(ctx, up, correlationID)
		if err != nil {
			return out, err
		}
		out = append(out, tracker)
	}
	return out, nil
}

// GetTracker returns one tracker by id.
func (s *IngestService) GetTracker(ctx domain.Context, id string) (domain.ProcessTracker, error) {
	return s.trackers.Get(ctx, id)
}

// RecentTrackers lists trackers created in the last N hours.
func (s *IngestService) RecentTrackers(ctx domain.Context, hours int) ([]domain.ProcessTracker, error) {
	if hours <= 0 {
		hours = 24
	}
	return s.trackers.RecentSince(ctx, time.Now().UTC().Add(-time.Duration(hours)*time.Hour))
}

// CancelJob cancels a pending or in-flight job.
func (s *IngestService) CancelJob(ctx domain.Context, jobID string) (bool, error) {
	return s.queue.Cancel(ctx, jobID)
}

func (s *IngestService) ingest(ctx domain.Context, up Upload, correlationID string) (domain.ProcessTracker, error) {
	if err := s.validate(up); err != nil {
		return domain.ProcessTracker{}, err
	}

	tracker := domain.ProcessTracker{
		Status:        domain.TrackerInitiated,
		TotalFiles:    1,
		Filename:      up.FileName,
		CorrelationID: correlationID,
	}
	trackerID, err := s.trackers.Create(ctx, tracker)
	if err != nil {
		return domain.ProcessTracker{}, fmt.Errorf("op=ingest: create tracker: %w", err)
	}
	tracker.ID = trackerID

	path, err := s.pipeline.storeFile(up.FileName, up.Data)
	if err != nil {
		return domain.ProcessTracker{}, fmt.Errorf("op=ingest: store upload: %w", err)
	}

	payload, _ := json.Marshal(resumeJobPayload{FileName: up.FileName, Path: path})
	job := domain.QueueJob{
		Kind:          domain.JobKindResumeProcessing,
		Payload:       payload,
		Metadata:      map[string]string{metaTrackerID: tracker.ID, metaFilename: up.FileName},
		CorrelationID: correlationID,
		MaxRetries:    s.cfg.RetryMaxAttempts,
	}
	jobID, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		return domain.ProcessTracker{}, fmt.Errorf("op=ingest: enqueue: %w", err)
	}
	observability.EnqueueJob(job.Kind)
	slog.Info("resume enqueued",
		slog.String("job_id", jobID),
		slog.String("tracker_id", tracker.ID),
		slog.String("correlation_id", correlationID),
		slog.String("filename", up.FileName))

	if !s.cfg.SchedulerEnabled {
		s.drainInline(ctx)
		return s.trackers.Get(ctx, tracker.ID)
	}
	return tracker, nil
}

// drainInline claims and processes resume jobs until none are claimable,
// picking up zip children enqueued mid-drain. Every claimed job is
// processed, whichever upload enqueued it; retryable failures land back
// in PENDING with a future schedule and fall to the next upload.
func (s *IngestService) drainInline(ctx domain.Context) {
	for {
		claimed, err := s.queue.Claim(ctx, domain.JobKindResumeProcessing, 1, "inline")
		if err != nil {
			slog.Warn("inline claim failed", slog.Any("error", err))
			return
		}
		if len(claimed) == 0 {
			return
		}
		for _, job := range claimed {
			s.pipeline.Process(ctx, job)
		}
	}
}

// validate rejects empty, oversize, and unsupported uploads before any
// state is written. These are never enqueued or retried.
func (s *IngestService) validate(up Upload) error {
	if strings.TrimSpace(up.FileName) == "" {
		return fmt.Errorf("op=ingest.validate: missing filename: %w", domain.ErrInvalidArgument)
	}
	if len(up.Data) == 0 {
		return fmt.Errorf("op=ingest.validate: empty file %q: %w", up.FileName, domain.ErrInvalidArgument)
	}
	if int64(len(up.Data)) > s.cfg.MaxUploadBytes {
		return fmt.Errorf("op=ingest.validate: file %q exceeds %d bytes: %w", up.FileName, s.cfg.MaxUploadBytes, domain.ErrInvalidArgument)
	}
	ext := strings.ToLower(filepath.Ext(up.FileName))
	if ext != ".zip" && !s.cfg.ExtensionAllowed(ext) {
		return fmt.Errorf("op=ingest.validate: unsupported extension %q: %w", ext, domain.ErrInvalidArgument)
	}
	return nil
}

func newCorrelationID() string {
	return ulid.Make().String()
}
