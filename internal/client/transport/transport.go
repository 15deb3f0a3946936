// Package transport implements the wire encodings a chunk can be sent
// with: multipart form submission and raw binary submission with header
// metadata. Both satisfy the same Sender capability so the pump can swap
// between them without knowing which is in use.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
)

// Chunk is one outbound piece of a chunked upload.
type Chunk struct {
	SessionID   string
	ChunkIndex  int
	TotalChunks int
	FileName    string
	Data        []byte
}

// Result reports the outcome of sending a single chunk.
type Result struct {
	StatusCode int
	Body       []byte
}

// Sender sends one chunk to baseURL and reports the result. A non-nil
// error with StatusCode 0 in the returned Result indicates a transport
// failure (no response was received); a non-nil error with a non-zero
// status indicates the server rejected the chunk.
type Sender interface {
	Send(ctx context.Context, baseURL string, c Chunk) (Result, error)
}

// HTTPClient is the subset of *http.Client the senders depend on, so
// tests can substitute a fake round tripper.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Multipart sends chunks as a multipart/form-data POST to "/upload",
// matching the legacy-friendly form fields named in the server's HTTP
// surface.
type Multipart struct {
	Client HTTPClient
}

// NewMultipart builds a Multipart sender. client defaults to
// http.DefaultClient when nil.
func NewMultipart(client HTTPClient) *Multipart {
	if client == nil {
		client = http.DefaultClient
	}

	return &Multipart{Client: client}
}

func (m *Multipart) Send(ctx context.Context, baseURL string, c Chunk) (Result, error) {
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	if err := w.WriteField("sessionId", c.SessionID); err != nil {
		return Result{}, fmt.Errorf("transport: write sessionId field: %w", err)
	}

	if err := w.WriteField("chunkIndex", strconv.Itoa(c.ChunkIndex)); err != nil {
		return Result{}, fmt.Errorf("transport: write chunkIndex field: %w", err)
	}

	if err := w.WriteField("totalChunks", strconv.Itoa(c.TotalChunks)); err != nil {
		return Result{}, fmt.Errorf("transport: write totalChunks field: %w", err)
	}

	if err := w.WriteField("fileName", c.FileName); err != nil {
		return Result{}, fmt.Errorf("transport: write fileName field: %w", err)
	}

	part, err := w.CreateFormFile("file", c.FileName)
	if err != nil {
		return Result{}, fmt.Errorf("transport: create form file: %w", err)
	}

	if _, err := part.Write(c.Data); err != nil {
		return Result{}, fmt.Errorf("transport: write chunk data: %w", err)
	}

	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("transport: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/upload", body)
	if err != nil {
		return Result{}, fmt.Errorf("transport: build request: %w", err)
	}

	req.Header.Set("Content-Type", w.FormDataContentType())

	return do(m.Client, req)
}

// Binary sends chunks as a raw request body with chunk metadata carried
// in headers, avoiding the multipart encoding overhead for large chunks.
type Binary struct {
	Client HTTPClient
}

// NewBinary builds a Binary sender. client defaults to http.DefaultClient
// when nil.
func NewBinary(client HTTPClient) *Binary {
	if client == nil {
		client = http.DefaultClient
	}

	return &Binary{Client: client}
}

func (b *Binary) Send(ctx context.Context, baseURL string, c Chunk) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/upload/binary", bytes.NewReader(c.Data))
	if err != nil {
		return Result{}, fmt.Errorf("transport: build request: %w", err)
	}

	req.Header.Set("X-File-Id", c.SessionID)
	req.Header.Set("X-Chunk-Number", strconv.Itoa(c.ChunkIndex))
	req.Header.Set("X-Total-Chunks", strconv.Itoa(c.TotalChunks))
	req.Header.Set("X-File-Name", c.FileName)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.ContentLength = int64(len(c.Data))

	return do(b.Client, req)
}

func do(client HTTPClient, req *http.Request) (Result, error) {
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("transport: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{StatusCode: resp.StatusCode}, fmt.Errorf("transport: read response body: %w", err)
	}

	result := Result{StatusCode: resp.StatusCode, Body: respBody}

	if resp.StatusCode >= http.StatusBadRequest {
		return result, fmt.Errorf("transport: server returned status %d", resp.StatusCode)
	}

	return result, nil
}
