package store

import "time"

// CacheEntry indexes one persistently staged copy of a remote file.
type CacheEntry struct {
	Key          string
	RemotePath   string
	LocalPath    string
	LastModified time.Time
	Size         int64
	StagedAt     time.Time
}

// Run summarises one sync invocation.
type Run struct {
	ID             string
	Stream         string
	StartedAt      time.Time
	FinishedAt     time.Time
	FilesSelected  int
	FilesExtracted int
	FilesFailed    int
	Chunks         int
	Watermark      time.Time
	Error          string
}

// Succeeded reports whether the run finished without a fatal error.
func (r Run) Succeeded() bool { return r.Error == "" }
