package cache

import "io"

// FetchResult is what a provider's Fetch returns on a hit: either the full
// payload buffered in memory, or a lazily readable stream, plus metadata.
// At most one of Buffer/Stream is meaningful; callers must check HasBuffer.
//
// Ownership: the caller takes ownership of Stream and must Close it.
type FetchResult struct {
	Buffer   []byte
	HasBuffer bool
	Stream   io.ReadCloser
	Metadata EntryMetadata
}

// ContentLength resolves the content length in the order mandated by the
// data model: buffered length, then metadata, then a seekable stream's
// length, else -1.
func (r FetchResult) ContentLength() int64 {
	if r.HasBuffer {
		return int64(len(r.Buffer))
	}
	if r.Metadata.ContentLength >= 0 {
		return r.Metadata.ContentLength
	}
	if seeker, ok := r.Stream.(io.Seeker); ok {
		if cur, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			if end, err := seeker.Seek(0, io.SeekEnd); err == nil {
				seeker.Seek(cur, io.SeekStart)
				return end
			}
		}
	}
	return -1
}

// Status classifies the outcome of a CacheCascade.GetOrCreate call.
type Status int

const (
	// StatusMemoryHit means an inline (in-process) provider held the entry.
	StatusMemoryHit Status = iota
	// StatusDiskHit means a local, non-inline provider held the entry.
	StatusDiskHit
	// StatusCloudHit means a non-local provider held the entry.
	StatusCloudHit
	// StatusQueueHit means the upload queue's read-through path held the entry.
	StatusQueueHit
	// StatusCreated means no tier held the entry and the factory produced it.
	StatusCreated
	// StatusTimeout means a coalesced follower gave up waiting on the leader.
	StatusTimeout
	// StatusError means the request could not be completed.
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusMemoryHit:
		return "MemoryHit"
	case StatusDiskHit:
		return "DiskHit"
	case StatusCloudHit:
		return "CloudHit"
	case StatusQueueHit:
		return "QueueHit"
	case StatusCreated:
		return "Created"
	case StatusTimeout:
		return "Timeout"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// Result is the tagged union returned by CacheCascade.GetOrCreate.
type Result struct {
	Status Status

	Buffer    []byte
	HasBuffer bool
	Stream    io.ReadCloser

	ContentType  string
	Provider     string
	Latency      int64 // nanoseconds
	ErrorDetail  string
	WasCreated   bool
}
