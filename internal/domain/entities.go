// Package domain holds the core entities, ports, and error taxonomy.
// It stays free of infrastructure imports; adapters depend on it, never
// the other way around.
package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrRateLimited       = errors.New("rate limited")
	ErrUpstreamTimeout   = errors.New("upstream timeout")
	ErrUpstreamRateLimit = errors.New("upstream rate limit")
	ErrSchemaInvalid     = errors.New("schema invalid")
	ErrInternal          = errors.New("internal error")
)

// JobStatus enumerates queue job states.
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelled  JobStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// JobKindResumeProcessing is the queue kind consumed by the resume pipeline.
const JobKindResumeProcessing = "resume_processing"

// QueueJob is one durable unit of work.
// Invariants: PENDING rows carry no ClaimedBy/StartedAt; PROCESSING rows
// carry both and a monotonically non-decreasing HeartbeatAt;
// RetryCount <= MaxRetries at all times.
type QueueJob struct {
	ID            string
	Kind          string
	Status        JobStatus
	Priority      int
	Payload       []byte
	Metadata      map[string]string
	CorrelationID string
	RetryCount    int
	MaxRetries    int
	ScheduledFor  *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
	HeartbeatAt   *time.Time
	ClaimedBy     string
	Error         string
	Result        map[string]any
	CreatedAt     time.Time
}

// CanRetry reports whether a further attempt is allowed.
func (j QueueJob) CanRetry() bool { return j.RetryCount < j.MaxRetries }

// TrackerStatus enumerates process tracker stages.
type TrackerStatus string

const (
	TrackerInitiated       TrackerStatus = "INITIATED"
	TrackerResumeAnalyzed  TrackerStatus = "RESUME_ANALYZED"
	TrackerEmbedGenerated  TrackerStatus = "EMBED_GENERATED"
	TrackerVectorDBUpdated TrackerStatus = "VECTOR_DB_UPDATED"
	TrackerCompleted       TrackerStatus = "COMPLETED"
	TrackerFailed          TrackerStatus = "FAILED"
)

// ProcessTracker mirrors the user-visible stage of resume processing.
// processed + failed never exceeds total once total is set.
type ProcessTracker struct {
	ID             string
	Status         TrackerStatus
	TotalFiles     int
	ProcessedFiles int
	FailedFiles    int
	Message        string
	Filename       string
	CorrelationID  string
	JobID          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Candidate is the persisted output of a successful extraction.
type Candidate struct {
	ID                 string
	Name               string
	Email              string
	Phone              string
	Skills             string
	DomainKnowledge    string
	AcademicBackground string
	YearsOfExperience  int
	ResumeData         []byte
	ResumeText         string
	CreatedAt          time.Time
}

// SectionType labels an embedding chunk by resume section.
type SectionType string

const (
	SectionEducation      SectionType = "education"
	SectionExperience     SectionType = "experience"
	SectionSkills         SectionType = "skills"
	SectionProjects       SectionType = "projects"
	SectionCertifications SectionType = "certifications"
	SectionGeneral        SectionType = "general"
)

// ResumeEmbedding is one chunk/vector pair owned by a candidate.
// All vectors for a candidate share the embedding model's dimensionality.
type ResumeEmbedding struct {
	ID          string
	CandidateID string
	Content     string
	Vector      []float32
	Section     SectionType
	CreatedAt   time.Time
}

// JobRequirement is read-only here; CRUD is owned upstream.
type JobRequirement struct {
	ID                 string
	Title              string
	Description        string
	RequiredSkills     string
	RequiredEducation  string
	DomainRequirements string
	MinYears           int
	MaxYears           int
	Active             bool
	CreatedAt          time.Time
}

// ShortlistThreshold is the score at or above which a match is
// auto-shortlisted unless the candidate was already selected.
const ShortlistThreshold = 70.0

// CandidateMatch is the scored pairing of one candidate and one job,
// unique on (candidate, job). Scores are the LLM's reported numbers
// clamped to [0,100]; the aggregate is never recomputed here.
type CandidateMatch struct {
	ID              string
	CandidateID     string
	JobID           string
	MatchScore      float64
	SkillsScore     float64
	ExperienceScore float64
	EducationScore  float64
	DomainScore     float64
	Explanation     string
	IsShortlisted   bool
	IsSelected      bool
	RecruiterNote   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProfileSource enumerates external enrichment sources.
type ProfileSource string

const (
	SourceGitHub         ProfileSource = "GITHUB"
	SourceLinkedIn       ProfileSource = "LINKEDIN"
	SourceTwitter        ProfileSource = "TWITTER"
	SourceInternetSearch ProfileSource = "INTERNET_SEARCH"
)

// KnownSources lists every registered source value, in stable order.
var KnownSources = []ProfileSource{SourceGitHub, SourceLinkedIn, SourceTwitter, SourceInternetSearch}

// ProfileStatus enumerates the outcome of an enrichment attempt.
type ProfileStatus string

const (
	ProfilePending      ProfileStatus = "PENDING"
	ProfileSuccess      ProfileStatus = "SUCCESS"
	ProfileNotFound     ProfileStatus = "NOT_FOUND"
	ProfileNotAvailable ProfileStatus = "NOT_AVAILABLE"
	ProfileFailed       ProfileStatus = "FAILED"
)

// ExternalProfile is one row per (candidate, source), mutated only by
// enrichers. SUCCESS implies a non-nil LastFetchedAt.
type ExternalProfile struct {
	ID              string
	CandidateID     string
	Source          ProfileSource
	Status          ProfileStatus
	ProfileURL      string
	DisplayName     string
	Bio             string
	Company         string
	Location        string
	PublicRepos     int
	Followers       int
	RepoSummary     string
	EnrichedSummary string
	LastFetchedAt   *time.Time
	Error           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stale reports whether the profile must be re-fetched before being
// reused as LLM context.
func (p ExternalProfile) Stale(now time.Time, ttl time.Duration) bool {
	return p.LastFetchedAt == nil || p.LastFetchedAt.Before(now.Add(-ttl))
}

// AuditStatus enumerates match-run audit states.
type AuditStatus string

const (
	AuditInProgress AuditStatus = "IN_PROGRESS"
	AuditCompleted  AuditStatus = "COMPLETED"
	AuditFailed     AuditStatus = "FAILED"
)

// MatchAudit records one batch matching run. The IN_PROGRESS row is
// written synchronously; the terminal state is written asynchronously.
type MatchAudit struct {
	ID                string
	JobID             string
	JobTitle          string
	Status            AuditStatus
	CandidatesMatched int
	Shortlisted       int
	AverageScore      float64
	TopScore          float64
	DurationMS        int64
	EstimatedTokens   int64
	InitiatedBy       string
	InitiatedAt       time.Time
	CompletedAt       *time.Time
	Error             string
	Summary           string
}

// Context aliases context.Context so ports read uniformly.
type Context = context.Context
