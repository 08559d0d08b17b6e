// Package domain contains the core entities and pure logic for the music
// organization pipeline: jobs, proposals, folder shapes, and tracker marks.
package domain

import "time"

// Status is the lifecycle state of a Job. No other value is ever stored.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusAnalyzing Status = "analyzing"
	StatusReady     Status = "ready"
	StatusAccepted  Status = "accepted"
	StatusMoving    Status = "moving"
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// JobType distinguishes what a worker should do with a claimed Job.
type JobType string

const (
	JobTypeScan    JobType = "scan"
	JobTypeAnalyze JobType = "analyze"
	JobTypeMove    JobType = "move"
)

// Job is the central entity of the pipeline: a durable unit of work
// tracking one folder through discovery, analysis, human review, and
// file placement.
type Job struct {
	ID           int64
	FolderPath   string
	JobType      JobType
	MetadataJSON string
	UserFeedback string
	ArtistHint   string
	Status       Status
	ResultJSON   string
	Error        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// transitions enumerates every legal (from, to) status edge. Anything not
// listed here is an InvalidTransition.
var transitions = map[Status]map[Status]bool{
	StatusQueued:    {StatusAnalyzing: true},
	StatusAnalyzing: {StatusReady: true, StatusError: true, StatusQueued: true, StatusCompleted: true},
	StatusReady:     {StatusAccepted: true, StatusSkipped: true, StatusQueued: true},
	StatusAccepted:  {StatusMoving: true, StatusQueued: true},
	StatusMoving:    {StatusCompleted: true, StatusError: true},
}

// CanTransition reports whether moving from `from` to `to` is a legal edge
// in the job state machine.
func CanTransition(from, to Status) bool {
	edges, ok := transitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// legacyStatusAliases maps historical status names to their current
// equivalents, for rows written before this status set existed.
//
// The one historical alias that collides with a live status -
// "completed" used to mean what is now StatusReady - is NOT handled
// here. Resolving it at read time would be ambiguous: a row holding
// "completed" could be a pre-migration ready-job or a genuinely
// completed one, and Status alone can't tell them apart. That alias is
// instead resolved exactly once, in the sqlite adapter's schema
// migration, by rewriting legacy rows to "ready" before this package
// ever sees them. By the time a Job reaches this package, "completed"
// always means StatusCompleted.
var legacyStatusAliases = map[Status]Status{
	"in_progress": StatusAnalyzing,
	"approved":    StatusReady,
	"failed":      StatusError,
}

// NormalizeStatus maps a legacy alias to its canonical status, or returns
// the input unchanged if it is already canonical (or unrecognized).
func NormalizeStatus(s Status) Status {
	if canonical, ok := legacyStatusAliases[s]; ok {
		return canonical
	}
	return s
}

// SupportedExtensions are the audio file suffixes the pipeline recognizes,
// matched case-insensitively.
var SupportedExtensions = map[string]bool{
	".mp3":  true,
	".flac": true,
	".m4a":  true,
	".mp4":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
}

// TrackerMarkFileName is the hidden per-folder marker recording that a
// source folder has been organized.
const TrackerMarkFileName = ".whats-that-sound"
