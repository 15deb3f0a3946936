package httpapi

import (
	"time"

	"github.com/chunkrelay/chunkrelay/internal/server/registry"
)

// resumeRecord is the response body shape named in spec §6.
type resumeRecord struct {
	SessionID         string  `json:"sessionId"`
	TotalChunks       int     `json:"totalChunks"`
	FileName          string  `json:"fileName,omitempty"`
	FileSize          int64   `json:"fileSize,omitempty"`
	ChunkSize         int64   `json:"chunkSize,omitempty"`
	ReceivedChunks    []int   `json:"receivedChunks"`
	MissingChunks     []int   `json:"missingChunks"`
	NextExpectedChunk int     `json:"nextExpectedChunk"`
	UploadedBytes     int64   `json:"uploadedBytes"`
	ProgressPercent   float64 `json:"progressPercentage"`
	CanResume         bool    `json:"canResume"`
	Completed         bool    `json:"completed"`
	Failed            bool    `json:"failed"`
	ErrorMessage      string  `json:"errorMessage,omitempty"`
	CreatedAt         string  `json:"createdAt"`
	LastUpdatedAt     string  `json:"lastUpdatedAt"`
}

func toResumeRecord(s *registry.Session) resumeRecord {
	received := make([]int, 0, len(s.ReceivedChunks))
	for idx := range s.ReceivedChunks {
		received = append(received, idx)
	}

	return resumeRecord{
		SessionID:         s.ID,
		TotalChunks:       s.TotalChunks,
		FileName:          s.FileName,
		FileSize:          s.FileSize,
		ChunkSize:         s.ChunkSize,
		ReceivedChunks:    received,
		MissingChunks:     s.MissingChunks(),
		NextExpectedChunk: s.NextExpectedChunk(),
		UploadedBytes:     s.UploadedBytes,
		ProgressPercent:   s.ProgressPercentage(),
		CanResume:         s.CanResume(),
		Completed:         s.State == registry.StateCompleted,
		Failed:            s.State == registry.StateFailed,
		ErrorMessage:      s.ErrorMessage,
		CreatedAt:         s.CreatedAt.UTC().Format(time.RFC3339),
		LastUpdatedAt:     s.LastUpdatedAt.UTC().Format(time.RFC3339),
	}
}
