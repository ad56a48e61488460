package usecase_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/hirewise/resume-matcher/internal/domain"
)

// fakeQueue is an in-memory QueueRepository good enough for pipeline
// and ingest tests.
type fakeQueue struct {
	mu   sync.Mutex
	seq  int
	jobs map[string]*domain.QueueJob
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{jobs: map[string]*domain.QueueJob{}}
}

func (q *fakeQueue) Enqueue(_ domain.Context, j domain.QueueJob) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seq++
	j.ID = fmt.Sprintf("job-%d", q.seq)
	j.Status = domain.JobPending
	j.CreatedAt = time.Now().UTC()
	q.jobs[j.ID] = &j
	return j.ID, nil
}

func (q *fakeQueue) Claim(_ domain.Context, kind string, batch int, workerID string) ([]domain.QueueJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.QueueJob
	now := time.Now().UTC()
	for _, j := range q.jobs {
		if len(out) >= batch {
			break
		}
		if j.Kind != kind || j.Status != domain.JobPending {
			continue
		}
		if j.ScheduledFor != nil && j.ScheduledFor.After(now) {
			continue
		}
		j.Status = domain.JobProcessing
		j.ClaimedBy = workerID
		j.StartedAt = &now
		j.HeartbeatAt = &now
		out = append(out, *j)
	}
	return out, nil
}

func (q *fakeQueue) Heartbeat(_ domain.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok && j.Status == domain.JobProcessing {
		now := time.Now().UTC()
		j.HeartbeatAt = &now
	}
	return nil
}

func (q *fakeQueue) Complete(_ domain.Context, id string, result map[string]any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if j.Status != domain.JobProcessing {
		return nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobCompleted
	j.CompletedAt = &now
	j.Result = result
	return nil
}

func (q *fakeQueue) Fail(_ domain.Context, id, errMsg string, retryable bool, scheduledFor *time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if retryable && j.RetryCount < j.MaxRetries {
		j.Status = domain.JobPending
		j.RetryCount++
		j.ScheduledFor = scheduledFor
		j.ClaimedBy = ""
		j.StartedAt = nil
		j.HeartbeatAt = nil
		j.Error = errMsg
		return nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobFailed
	j.CompletedAt = &now
	j.Error = errMsg
	return nil
}

func (q *fakeQueue) Cancel(_ domain.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok || j.Status.Terminal() {
		return false, nil
	}
	now := time.Now().UTC()
	j.Status = domain.JobCancelled
	j.CompletedAt = &now
	return true, nil
}

func (q *fakeQueue) ResetStale(domain.Context, time.Duration) (int, error) { return 0, nil }

func (q *fakeQueue) Get(_ domain.Context, id string) (domain.QueueJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok {
		return *j, nil
	}
	return domain.QueueJob{}, domain.ErrNotFound
}

func (q *fakeQueue) ByCorrelation(_ domain.Context, cid string) ([]domain.QueueJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.QueueJob
	for _, j := range q.jobs {
		if j.CorrelationID == cid {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (q *fakeQueue) ByStatus(_ domain.Context, status domain.JobStatus, _ domain.Pager) ([]domain.QueueJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.QueueJob
	for _, j := range q.jobs {
		if j.Status == status {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (q *fakeQueue) QueueDepth(domain.Context, string) (int64, error)             { return 0, nil }
func (q *fakeQueue) CountByStatus(domain.Context, domain.JobStatus) (int64, error) { return 0, nil }
func (q *fakeQueue) AverageProcessingSeconds(domain.Context, string) (float64, error) {
	return 0, nil
}
func (q *fakeQueue) StatsByKind(_ domain.Context, kind string) (domain.QueueStats, error) {
	return domain.QueueStats{Kind: kind}, nil
}
func (q *fakeQueue) DeleteCompletedOlderThan(domain.Context, int) (int64, error) { return 0, nil }
func (q *fakeQueue) FindForRetry(domain.Context, string, int) ([]domain.QueueJob, error) {
	return nil, nil
}

type fakeTrackers struct {
	mu       sync.Mutex
	seq      int
	trackers map[string]domain.ProcessTracker
}

func newFakeTrackers() *fakeTrackers {
	return &fakeTrackers{trackers: map[string]domain.ProcessTracker{}}
}

func (r *fakeTrackers) Create(_ domain.Context, t domain.ProcessTracker) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	t.ID = fmt.Sprintf("tracker-%d", r.seq)
	t.CreatedAt = time.Now().UTC()
	r.trackers[t.ID] = t
	return t.ID, nil
}

func (r *fakeTrackers) Get(_ domain.Context, id string) (domain.ProcessTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.trackers[id]; ok {
		return t, nil
	}
	return domain.ProcessTracker{}, domain.ErrNotFound
}

func (r *fakeTrackers) Update(_ domain.Context, t domain.ProcessTracker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.trackers[t.ID]; !ok {
		return domain.ErrNotFound
	}
	t.UpdatedAt = time.Now().UTC()
	r.trackers[t.ID] = t
	return nil
}

func (r *fakeTrackers) MarkFileProcessed(_ domain.Context, id string) (domain.ProcessTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok {
		return domain.ProcessTracker{}, domain.ErrNotFound
	}
	t.ProcessedFiles++
	if t.Status != domain.TrackerFailed && t.ProcessedFiles+t.FailedFiles >= t.TotalFiles {
		t.Status = domain.TrackerCompleted
	}
	t.UpdatedAt = time.Now().UTC()
	r.trackers[id] = t
	return t, nil
}

func (r *fakeTrackers) MarkFileFailed(_ domain.Context, id, message string) (domain.ProcessTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok {
		return domain.ProcessTracker{}, domain.ErrNotFound
	}
	t.FailedFiles++
	if t.Status != domain.TrackerCompleted {
		t.Status = domain.TrackerFailed
	}
	t.Message = message
	t.UpdatedAt = time.Now().UTC()
	r.trackers[id] = t
	return t, nil
}

func (r *fakeTrackers) Annotate(_ domain.Context, id, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.trackers[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Message = message
	t.UpdatedAt = time.Now().UTC()
	r.trackers[id] = t
	return nil
}

func (r *fakeTrackers) RecentSince(_ domain.Context, since time.Time) ([]domain.ProcessTracker, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ProcessTracker
	for _, t := range r.trackers {
		if t.CreatedAt.After(since) {
			out = append(out, t)
		}
	}
	return out, nil
}

type fakeCandidates struct {
	mu         sync.Mutex
	seq        int
	candidates map[string]domain.Candidate
}

func newFakeCandidates() *fakeCandidates {
	return &fakeCandidates{candidates: map[string]domain.Candidate{}}
}

func (r *fakeCandidates) Create(_ domain.Context, c domain.Candidate) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	c.ID = fmt.Sprintf("cand-%d", r.seq)
	c.CreatedAt = time.Now().UTC()
	r.candidates[c.ID] = c
	return c.ID, nil
}

func (r *fakeCandidates) Get(_ domain.Context, id string) (domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.candidates[id]; ok {
		return c, nil
	}
	return domain.Candidate{}, domain.ErrNotFound
}

func (r *fakeCandidates) List(domain.Context, domain.Pager) ([]domain.Candidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Candidate, 0, len(r.candidates))
	for _, c := range r.candidates {
		out = append(out, c)
	}
	return out, nil
}

type fakeEmbeddings struct {
	mu      sync.Mutex
	sets    map[string][]domain.ResumeEmbedding
	similar []domain.ResumeEmbedding
}

func newFakeEmbeddings() *fakeEmbeddings {
	return &fakeEmbeddings{sets: map[string][]domain.ResumeEmbedding{}}
}

func (r *fakeEmbeddings) ReplaceForCandidate(_ domain.Context, candidateID string, embs []domain.ResumeEmbedding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sets[candidateID] = embs
	return nil
}

func (r *fakeEmbeddings) CountForCandidate(_ domain.Context, candidateID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.sets[candidateID])), nil
}

func (r *fakeEmbeddings) SimilarChunks(_ domain.Context, _ []float32, k int) ([]domain.ResumeEmbedding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k > len(r.similar) {
		k = len(r.similar)
	}
	return r.similar[:k], nil
}

type fakeProfiles struct {
	mu       sync.Mutex
	seq      int
	profiles map[string]domain.ExternalProfile
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{profiles: map[string]domain.ExternalProfile{}}
}

func (r *fakeProfiles) Upsert(_ domain.Context, p domain.ExternalProfile) (domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.profiles {
		if existing.CandidateID == p.CandidateID && existing.Source == p.Source {
			p.ID = id
			p.CreatedAt = existing.CreatedAt
			p.UpdatedAt = time.Now().UTC()
			r.profiles[id] = p
			return p, nil
		}
	}
	r.seq++
	p.ID = fmt.Sprintf("profile-%d", r.seq)
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	r.profiles[p.ID] = p
	return p, nil
}

func (r *fakeProfiles) Get(_ domain.Context, id string) (domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[id]; ok {
		return p, nil
	}
	return domain.ExternalProfile{}, domain.ErrNotFound
}

func (r *fakeProfiles) GetByCandidateAndSource(_ domain.Context, candidateID string, source domain.ProfileSource) (domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.CandidateID == candidateID && p.Source == source {
			return p, nil
		}
	}
	return domain.ExternalProfile{}, domain.ErrNotFound
}

func (r *fakeProfiles) ListForCandidate(_ domain.Context, candidateID string) ([]domain.ExternalProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ExternalProfile
	for _, p := range r.profiles {
		if p.CandidateID == candidateID {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeRequirements struct {
	jobs map[string]domain.JobRequirement
}

func (r *fakeRequirements) Get(_ domain.Context, id string) (domain.JobRequirement, error) {
	if j, ok := r.jobs[id]; ok {
		return j, nil
	}
	return domain.JobRequirement{}, domain.ErrNotFound
}

func (r *fakeRequirements) ListActive(domain.Context) ([]domain.JobRequirement, error) {
	var out []domain.JobRequirement
	for _, j := range r.jobs {
		if j.Active {
			out = append(out, j)
		}
	}
	return out, nil
}

type fakeMatches struct {
	mu      sync.Mutex
	seq     int
	matches map[string]domain.CandidateMatch
}

func newFakeMatches() *fakeMatches {
	return &fakeMatches{matches: map[string]domain.CandidateMatch{}}
}

func (r *fakeMatches) Upsert(_ domain.Context, m domain.CandidateMatch) (domain.CandidateMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.matches {
		if existing.CandidateID == m.CandidateID && existing.JobID == m.JobID {
			m.ID = id
			m.IsSelected = existing.IsSelected
			m.RecruiterNote = existing.RecruiterNote
			if existing.IsSelected {
				m.IsShortlisted = existing.IsShortlisted
			} else {
				m.IsShortlisted = m.IsShortlisted || existing.IsShortlisted
			}
			m.CreatedAt = existing.CreatedAt
			m.UpdatedAt = time.Now().UTC()
			r.matches[id] = m
			return m, nil
		}
	}
	r.seq++
	m.ID = fmt.Sprintf("match-%d", r.seq)
	m.CreatedAt = time.Now().UTC()
	m.UpdatedAt = m.CreatedAt
	r.matches[m.ID] = m
	return m, nil
}

func (r *fakeMatches) GetByCandidateAndJob(_ domain.Context, candidateID, jobID string) (domain.CandidateMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.CandidateID == candidateID && m.JobID == jobID {
			return m, nil
		}
	}
	return domain.CandidateMatch{}, domain.ErrNotFound
}

func (r *fakeMatches) ListForJob(_ domain.Context, jobID string) ([]domain.CandidateMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CandidateMatch
	for _, m := range r.matches {
		if m.JobID == jobID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMatches) UpdateFlags(_ domain.Context, id string, shortlisted, selected *bool, note *string) (domain.CandidateMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return domain.CandidateMatch{}, domain.ErrNotFound
	}
	if shortlisted != nil {
		m.IsShortlisted = *shortlisted
	}
	if selected != nil {
		m.IsSelected = *selected
	}
	if note != nil {
		m.RecruiterNote = *note
	}
	r.matches[id] = m
	return m, nil
}

type fakeAudits struct {
	mu     sync.Mutex
	seq    int
	audits map[string]domain.MatchAudit
}

func newFakeAudits() *fakeAudits {
	return &fakeAudits{audits: map[string]domain.MatchAudit{}}
}

func (r *fakeAudits) Create(_ domain.Context, a domain.MatchAudit) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	a.ID = fmt.Sprintf("audit-%d", r.seq)
	r.audits[a.ID] = a
	return a.ID, nil
}

func (r *fakeAudits) Get(_ domain.Context, id string) (domain.MatchAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.audits[id]; ok {
		return a, nil
	}
	return domain.MatchAudit{}, domain.ErrNotFound
}

func (r *fakeAudits) Complete(_ domain.Context, a domain.MatchAudit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	a.CompletedAt = &now
	r.audits[a.ID] = a
	return nil
}

func (r *fakeAudits) MarkFailed(_ domain.Context, id, errMsg string, durationMS int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.audits[id]
	if !ok {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	a.Status = domain.AuditFailed
	a.Error = errMsg
	a.DurationMS = durationMS
	a.CompletedAt = &now
	r.audits[id] = a
	return nil
}

func (r *fakeAudits) List(domain.Context, domain.Pager) ([]domain.MatchAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.MatchAudit, 0, len(r.audits))
	for _, a := range r.audits {
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAudits) ActiveRuns(domain.Context) ([]domain.MatchAudit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MatchAudit
	for _, a := range r.audits {
		if a.Status == domain.AuditInProgress {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeAI scripts chat responses in call order and embeds every text as
// the same fixed-size vector.
type fakeAI struct {
	mu        sync.Mutex
	chats     []string
	chatErr   error
	chatCalls int
	embedErr  error
	dims      int
}

func (f *fakeAI) ChatJSON(domain.Context, string, string, float64, int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatCalls++
	if f.chatErr != nil {
		return "", f.chatErr
	}
	if len(f.chats) == 0 {
		return "", domain.ErrSchemaInvalid
	}
	out := f.chats[0]
	if len(f.chats) > 1 {
		f.chats = f.chats[1:]
	}
	return out, nil
}

func (f *fakeAI) Embed(_ domain.Context, texts []string) ([][]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	dims := f.dims
	if dims == 0 {
		dims = 4
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, dims)
		out[i][0] = 1
	}
	return out, nil
}

// fakeExtractor returns canned text per filename.
type fakeExtractor struct {
	text string
	err  error
}

func (f *fakeExtractor) Extract(_ domain.Context, _ string, _ []byte) (string, error) {
	return f.text, f.err
}

// fakeEnricher records calls and stamps the scripted status.
type fakeEnricher struct {
	source   domain.ProfileSource
	supports func(string) bool
	status   domain.ProfileStatus
	summary  string
	calls    int
	repo     domain.ProfileRepository
}

func (f *fakeEnricher) Source() domain.ProfileSource { return f.source }

func (f *fakeEnricher) SupportsURL(u string) bool {
	if f.supports == nil {
		return false
	}
	return f.supports(u)
}

func (f *fakeEnricher) Enrich(ctx domain.Context, existing domain.ExternalProfile, c domain.Candidate) (domain.ExternalProfile, error) {
	f.calls++
	existing.CandidateID = c.ID
	existing.Source = f.source
	existing.Status = f.status
	existing.EnrichedSummary = f.summary
	now := time.Now().UTC()
	existing.LastFetchedAt = &now
	return f.repo.Upsert(ctx, existing)
}
