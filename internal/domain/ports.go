package domain

import "time"

// Pager is a limit/offset pair for list reads.
type Pager struct {
	Limit  int
	Offset int
}

// QueueStats aggregates per-kind queue counters.
type QueueStats struct {
	Kind       string
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	Cancelled  int64
}

// QueueRepository is the durable FIFO-with-priority queue. Claim must be
// atomic under skip-locked row locking: two callers never observe the
// same PENDING row.
type QueueRepository interface {
	Enqueue(ctx Context, j QueueJob) (string, error)
	// Claim selects up to batch PENDING rows of kind ordered by
	// (priority DESC, created_at ASC, id ASC), skipping rows scheduled
	// in the future, and transitions them to PROCESSING for workerID.
	Claim(ctx Context, kind string, batch int, workerID string) ([]QueueJob, error)
	Heartbeat(ctx Context, id string) error
	Complete(ctx Context, id string, result map[string]any) error
	// Fail retries (back to PENDING with scheduledFor) when retryable and
	// attempts remain; otherwise the row goes terminally FAILED.
	Fail(ctx Context, id, errMsg string, retryable bool, scheduledFor *time.Time) error
	Cancel(ctx Context, id string) (bool, error)
	// ResetStale recovers PROCESSING rows whose heartbeat predates the
	// threshold; returns the number of rows touched.
	ResetStale(ctx Context, threshold time.Duration) (int, error)

	Get(ctx Context, id string) (QueueJob, error)
	ByCorrelation(ctx Context, correlationID string) ([]QueueJob, error)
	ByStatus(ctx Context, status JobStatus, p Pager) ([]QueueJob, error)
	QueueDepth(ctx Context, kind string) (int64, error)
	CountByStatus(ctx Context, status JobStatus) (int64, error)
	AverageProcessingSeconds(ctx Context, kind string) (float64, error)
	StatsByKind(ctx Context, kind string) (QueueStats, error)
	DeleteCompletedOlderThan(ctx Context, days int) (int64, error)
	FindForRetry(ctx Context, kind string, limit int) ([]QueueJob, error)
}

// CandidateRepository persists extracted candidates.
type CandidateRepository interface {
	Create(ctx Context, c Candidate) (string, error)
	Get(ctx Context, id string) (Candidate, error)
	List(ctx Context, p Pager) ([]Candidate, error)
}

// EmbeddingRepository owns a candidate's chunk vectors as a whole set.
type EmbeddingRepository interface {
	// ReplaceForCandidate deletes any prior vectors and inserts the new
	// set in one transaction.
	ReplaceForCandidate(ctx Context, candidateID string, embs []ResumeEmbedding) error
	CountForCandidate(ctx Context, candidateID string) (int64, error)
	// SimilarChunks returns the k nearest chunks by cosine distance.
	SimilarChunks(ctx Context, vector []float32, k int) ([]ResumeEmbedding, error)
}

// TrackerRepository persists process trackers.
type TrackerRepository interface {
	Create(ctx Context, t ProcessTracker) (string, error)
	Get(ctx Context, id string) (ProcessTracker, error)
	Update(ctx Context, t ProcessTracker) error
	// MarkFileProcessed atomically counts one processed file and moves
	// the tracker to COMPLETED once every file is accounted for.
	MarkFileProcessed(ctx Context, id string) (ProcessTracker, error)
	// MarkFileFailed atomically counts one failed file and moves the
	// tracker to FAILED unless it already completed.
	MarkFileFailed(ctx Context, id, message string) (ProcessTracker, error)
	// Annotate replaces the tracker message without touching status or
	// counters.
	Annotate(ctx Context, id, message string) error
	RecentSince(ctx Context, since time.Time) ([]ProcessTracker, error)
}

// JobRequirementRepository reads job postings owned by upstream CRUD.
type JobRequirementRepository interface {
	Get(ctx Context, id string) (JobRequirement, error)
	ListActive(ctx Context) ([]JobRequirement, error)
}

// MatchRepository upserts matches keyed by (candidate, job).
type MatchRepository interface {
	// Upsert preserves IsSelected and RecruiterNote on re-score.
	Upsert(ctx Context, m CandidateMatch) (CandidateMatch, error)
	GetByCandidateAndJob(ctx Context, candidateID, jobID string) (CandidateMatch, error)
	ListForJob(ctx Context, jobID string) ([]CandidateMatch, error)
	// UpdateFlags sets shortlist/select flags and the recruiter note.
	UpdateFlags(ctx Context, id string, shortlisted, selected *bool, note *string) (CandidateMatch, error)
}

// ProfileRepository upserts external profiles keyed by (candidate, source).
type ProfileRepository interface {
	Upsert(ctx Context, p ExternalProfile) (ExternalProfile, error)
	Get(ctx Context, id string) (ExternalProfile, error)
	GetByCandidateAndSource(ctx Context, candidateID string, source ProfileSource) (ExternalProfile, error)
	ListForCandidate(ctx Context, candidateID string) ([]ExternalProfile, error)
}

// AuditRepository persists match-run audits.
type AuditRepository interface {
	Create(ctx Context, a MatchAudit) (string, error)
	Get(ctx Context, id string) (MatchAudit, error)
	Complete(ctx Context, a MatchAudit) error
	MarkFailed(ctx Context, id, errMsg string, durationMS int64) error
	List(ctx Context, p Pager) ([]MatchAudit, error)
	ActiveRuns(ctx Context) ([]MatchAudit, error)
}

// AIClient is the LLM port: an OpenAI-compatible chat endpoint and a
// separate embeddings endpoint. Empty chat responses surface as errors;
// JSON parsing is the caller's concern.
type AIClient interface {
	ChatJSON(ctx Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, error)
	Embed(ctx Context, texts []string) ([][]float32, error)
}

// TextExtractor turns document bytes into plain text.
type TextExtractor interface {
	Extract(ctx Context, fileName string, data []byte) (string, error)
}

// Enricher fetches external information from a single source. Enrich
// must set a terminal ProfileStatus and LastFetchedAt, catch all errors
// internally, and persist the row before returning.
type Enricher interface {
	Source() ProfileSource
	SupportsURL(url string) bool
	Enrich(ctx Context, existing ExternalProfile, c Candidate) (ExternalProfile, error)
}
