// Package usecase contains the application core: resume ingestion and
// processing, profile enrichment, and candidate matching. Adapters are
// reached only through the domain ports.
package usecase

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/hirewise/resume-matcher/internal/adapter/ai"
	"github.com/hirewise/resume-matcher/internal/adapter/observability"
	"github.com/hirewise/resume-matcher/internal/adapter/textextractor/docparse"
	"github.com/hirewise/resume-matcher/internal/config"
	"github.com/hirewise/resume-matcher/internal/domain"
)

// resumeJobPayload is the JSON body of a resume_processing queue job.
// File bytes live on disk under the upload directory; the payload only
// carries the stored path.
type resumeJobPayload struct {
	FileName string `json:"fileName"`
	Path     string `json:"path"`
}

const (
	metaTrackerID = "trackerId"
	metaFilename  = "filename"
)

// Pipeline turns one queued file into a persisted candidate with
// embeddings, updating the linked tracker at every stage.
type Pipeline struct {
	cfg        config.Config
	prompts    config.Prompts
	queue      domain.QueueRepository
	trackers   domain.TrackerRepository
	candidates domain.CandidateRepository
	embeddings domain.EmbeddingRepository
	ai         domain.AIClient
	extractor  domain.TextExtractor
}

// NewPipeline wires the pipeline dependencies.
func NewPipeline(
	cfg config.Config,
	prompts config.Prompts,
	queue domain.QueueRepository,
	trackers domain.TrackerRepository,
	candidates domain.CandidateRepository,
	embeddings domain.EmbeddingRepository,
	ai domain.AIClient,
	extractor domain.TextExtractor,
) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		prompts:    prompts,
		queue:      queue,
		trackers:   trackers,
		candidates: candidates,
		embeddings: embeddings,
		ai:         ai,
		extractor:  extractor,
	}
}

// Process runs the full pipeline for one claimed job. Errors never
// escape a job boundary: every failure becomes a queue transition and
// an annotated tracker.
func (p *Pipeline) Process(ctx domain.Context, job domain.QueueJob) {
	observability.StartProcessingJob(job.Kind)
	if err := p.process(ctx, job); err != nil {
		p.handleJobFailure(ctx, job, err)
		return
	}
	observability.CompleteJob(job.Kind)
}

func (p *Pipeline) process(ctx domain.Context, job domain.QueueJob) error {
	var payload resumeJobPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("op=pipeline.process: invalid payload: %w", err)
	}
	trackerID := job.Metadata[metaTrackerID]
	if payload.FileName == "" || trackerID == "" {
		return fmt.Errorf("op=pipeline.process: invalid job metadata: missing filename or tracker")
	}

	tracker, err := p.trackers.Get(ctx, trackerID)
	if err != nil {
		return fmt.Errorf("op=pipeline.process: load tracker: %w", err)
	}
	if tracker.JobID == nil {
		tracker.JobID = &job.ID
		tracker.CorrelationID = job.CorrelationID
		if err := p.trackers.Update(ctx, tracker); err != nil {
			return fmt.Errorf("op=pipeline.process: link tracker: %w", err)
		}
	}

	data, err := os.ReadFile(payload.Path)
	if err != nil {
		return fmt.Errorf("op=pipeline.process: read upload: %w", err)
	}

	if docparse.IsZip(payload.FileName, data) {
		return p.fanOutZip(ctx, job, tracker, data)
	}

	_ = p.queue.Heartbeat(ctx, job.ID)
	text, err := p.extractor.Extract(ctx, payload.FileName, data)
	if err != nil {
		return err
	}

	_ = p.queue.Heartbeat(ctx, job.ID)
	extraction, fellBack := p.extractFields(ctx, text)

	// Interim stages narrate single-file trackers only. A tracker shared
	// by zip children moves INITIATED -> COMPLETED through the file
	// counters so its status stays monotonic.
	single := tracker.TotalFiles <= 1
	if fellBack {
		tracker.Message = "LLM extraction unavailable, fallback fields stored"
		if !single {
			_ = p.trackers.Annotate(ctx, tracker.ID, tracker.Message)
		}
	}
	if single {
		tracker.Status = domain.TrackerResumeAnalyzed
		if err := p.trackers.Update(ctx, tracker); err != nil {
			return fmt.Errorf("op=pipeline.process: tracker analyzed: %w", err)
		}
	}

	_ = p.queue.Heartbeat(ctx, job.ID)
	candidateID, err := p.candidates.Create(ctx, domain.Candidate{
		Name:               extraction.Name,
		Email:              extraction.Email,
		Phone:              extraction.Phone,
		Skills:             extraction.Skills,
		DomainKnowledge:    extraction.DomainKnowledge,
		AcademicBackground: extraction.AcademicBackground,
		YearsOfExperience:  extraction.YearsOfExperience,
		ResumeData:         data,
		ResumeText:         text,
	})
	if err != nil {
		return fmt.Errorf("op=pipeline.process: persist candidate: %w", err)
	}

	_ = p.queue.Heartbeat(ctx, job.ID)
	embCount, err := p.embedAndStore(ctx, candidateID, text)
	if err != nil {
		return fmt.Errorf("op=pipeline.process: embeddings: %w", err)
	}

	if single {
		for _, st := range []domain.TrackerStatus{domain.TrackerEmbedGenerated, domain.TrackerVectorDBUpdated} {
			tracker.Status = st
			if err := p.trackers.Update(ctx, tracker); err != nil {
				return fmt.Errorf("op=pipeline.process: tracker %s: %w", st, err)
			}
		}
	}
	if _, err := p.trackers.MarkFileProcessed(ctx, tracker.ID); err != nil {
		return fmt.Errorf("op=pipeline.process: tracker completed: %w", err)
	}

	result := map[string]any{
		"candidateId":       candidateID,
		"filename":          payload.FileName,
		"yearsOfExperience": extraction.YearsOfExperience,
		"skillsPresent":     extraction.Skills != "",
	}
	if err := p.queue.Complete(ctx, job.ID, result); err != nil {
		return fmt.Errorf("op=pipeline.process: complete job: %w", err)
	}
	slog.Info("resume processed",
		slog.String("job_id", job.ID),
		slog.String("candidate_id", candidateID),
		slog.String("filename", payload.FileName),
		slog.Int("embeddings", embCount))
	return nil
}

// fanOutZip enqueues one child job per supported archive entry. The
// tracker's totalFiles counts only supported entries.
func (p *Pipeline) fanOutZip(ctx domain.Context, job domain.QueueJob, tracker domain.ProcessTracker, data []byte) error {
	entries, err := docparse.ListZipEntries(data, p.cfg.ExtensionAllowed)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("op=pipeline.fanOutZip: invalid archive: no supported entries")
	}

	tracker.TotalFiles = len(entries)
	if err := p.trackers.Update(ctx, tracker); err != nil {
		return fmt.Errorf("op=pipeline.fanOutZip: tracker: %w", err)
	}

	for _, entry := range entries {
		_ = p.queue.Heartbeat(ctx, job.ID)
		path, err := p.storeFile(entry.Name, entry.Data)
		if err != nil {
			return fmt.Errorf("op=pipeline.fanOutZip: store entry: %w", err)
		}
		payload, _ := json.Marshal(resumeJobPayload{FileName: entry.Name, Path: path})
		child := domain.QueueJob{
			Kind:          domain.JobKindResumeProcessing,
			Priority:      job.Priority,
			Payload:       payload,
			Metadata:      map[string]string{metaTrackerID: tracker.ID, metaFilename: entry.Name},
			CorrelationID: job.CorrelationID,
			MaxRetries:    job.MaxRetries,
		}
		if _, err := p.queue.Enqueue(ctx, child); err != nil {
			return fmt.Errorf("op=pipeline.fanOutZip: enqueue entry: %w", err)
		}
		observability.EnqueueJob(child.Kind)
	}

	return p.queue.Complete(ctx, job.ID, map[string]any{"fanOut": len(entries)})
}

func (p *Pipeline) storeFile(name string, data []byte) (string, error) {
	if err := os.MkdirAll(p.cfg.UploadDirectory, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(p.cfg.UploadDirectory, uuid.NewString()+"_"+filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// extraction is the structured output of the resume-analysis prompt.
type extraction struct {
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	Phone              string  `json:"phone"`
	ExperienceSummary  string  `json:"experienceSummary"`
	Skills             string  `json:"skills"`
	DomainKnowledge    string  `json:"domainKnowledge"`
	AcademicBackground string  `json:"academicBackground"`
	YearsOfExperience  int     `json:"yearsOfExperience"`
	Confidence         float64 `json:"confidence"`
}

// extractFields runs the analysis prompt. Any LLM or parse failure
// yields the fallback extraction so an outage never fails the job.
func (p *Pipeline) extractFields(ctx domain.Context, text string) (extraction, bool) {
	user := p.prompts.ResumeAnalysis.Render(map[string]string{"resume_text": text})
	raw, err := p.ai.ChatJSON(ctx, p.prompts.ResumeAnalysis.System, user, 0.1, 1500)
	if err == nil {
		var ex extraction
		if derr := decodeExtraction(raw, &ex); derr == nil {
			return ex, false
		} else {
			err = derr
		}
	}
	slog.Warn("resume extraction fell back", slog.Any("error", err))
	return extraction{Name: "Unknown", Confidence: 0}, true
}

// embedAndStore chunks the text and replaces the candidate's embedding
// set. Batch failures retry per item; per-item failures store a zero
// vector so chunk counts stay consistent.
func (p *Pipeline) embedAndStore(ctx domain.Context, candidateID, text string) (int, error) {
	chunks := ChunkResumeText(text)
	if len(chunks) == 0 {
		return 0, p.embeddings.ReplaceForCandidate(ctx, candidateID, nil)
	}

	batchSize := p.cfg.EmbeddingBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += batchSize {
		end := min(start+batchSize, len(chunks))
		texts := make([]string, 0, end-start)
		for _, c := range chunks[start:end] {
			texts = append(texts, c.Content)
		}
		vs, err := p.ai.Embed(ctx, texts)
		if err != nil || len(vs) != len(texts) {
			vs = p.embedOneByOne(ctx, texts)
		}
		vectors = append(vectors, vs...)
	}

	embs := make([]domain.ResumeEmbedding, len(chunks))
	for i, c := range chunks {
		embs[i] = domain.ResumeEmbedding{
			CandidateID: candidateID,
			Content:     c.Content,
			Vector:      vectors[i],
			Section:     c.Section,
		}
	}
	if err := p.embeddings.ReplaceForCandidate(ctx, candidateID, embs); err != nil {
		return 0, err
	}
	return len(embs), nil
}

func (p *Pipeline) embedOneByOne(ctx domain.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vs, err := p.ai.Embed(ctx, []string{t})
		if err == nil && len(vs) == 1 {
			out[i] = vs[0]
			continue
		}
		slog.Warn("embedding fell back to zero vector", slog.Any("error", err))
		out[i] = make([]float32, p.cfg.EmbeddingDimensions)
	}
	return out
}

// handleJobFailure classifies the error and transitions the job: PENDING
// with exponential backoff while retries remain on retryable errors,
// FAILED terminally otherwise. The tracker is annotated either way.
func (p *Pipeline) handleJobFailure(ctx domain.Context, job domain.QueueJob, procErr error) {
	retryable := domain.Retryable(procErr)
	msg := procErr.Error()

	if retryable && job.CanRetry() {
		next := time.Now().UTC().Add(domain.NextBackoff(job.RetryCount, p.cfg.RetryBaseBackoff, p.cfg.RetryMaxBackoff))
		if err := p.queue.Fail(ctx, job.ID, msg, true, &next); err != nil {
			slog.Error("job retry transition failed", slog.String("job_id", job.ID), slog.Any("error", err))
			return
		}
		observability.RetryJob(job.Kind)
		if trackerID := job.Metadata[metaTrackerID]; trackerID != "" {
			_ = p.trackers.Annotate(ctx, trackerID, fmt.Sprintf("retry %d scheduled: %s", job.RetryCount+1, msg))
		}
		slog.Warn("job scheduled for retry",
			slog.String("job_id", job.ID),
			slog.Int("retry_count", job.RetryCount+1),
			slog.Time("scheduled_for", next),
			slog.String("error", msg))
		return
	}

	if err := p.queue.Fail(ctx, job.ID, msg, false, nil); err != nil {
		slog.Error("job fail transition failed", slog.String("job_id", job.ID), slog.Any("error", err))
	}
	observability.FailJob(job.Kind)
	p.failTracker(ctx, job, msg)
	slog.Error("job failed terminally", slog.String("job_id", job.ID), slog.String("error", msg))
}

func (p *Pipeline) failTracker(ctx domain.Context, job domain.QueueJob, msg string) {
	trackerID := job.Metadata[metaTrackerID]
	if trackerID == "" {
		return
	}
	if _, err := p.trackers.MarkFileFailed(ctx, trackerID, strings.TrimSpace(msg)); err != nil {
		slog.Error("tracker fail update", slog.String("tracker_id", trackerID), slog.Any("error", err))
	}
}

func decodeExtraction(raw string, v *extraction) error {
	return ai.DecodeJSON(raw, v)
}
