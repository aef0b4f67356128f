package constants

// JobStatus is the lifecycle of an extraction job as recorded in the ledger.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued    JobStatus = "QUEUED"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusPartial   JobStatus = "PARTIAL" // some sections or chunks failed
	JobStatusFailed    JobStatus = "FAILED"
)

// ChunkStatus is the outcome of one submitted page chunk.
type ChunkStatus string

const (
	ChunkStatusSucceeded ChunkStatus = "SUCCEEDED"
	ChunkStatusFailed    ChunkStatus = "FAILED"
	ChunkStatusSkipped   ChunkStatus = "SKIPPED"
)
