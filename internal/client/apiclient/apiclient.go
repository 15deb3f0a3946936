// Package apiclient implements the small set of non-chunk HTTP calls a
// client needs against the chunkrelay server: finalize, cancel, resume,
// status and history. Chunk submission lives in package transport; the
// session-list endpoints and the websocket feed have no call here.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client calls the non-chunk endpoints of a chunkrelay server. It
// satisfies pump.Finalizer without importing package pump, avoiding an
// import cycle between the pump and the code that constructs it.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New builds a Client. httpClient defaults to http.DefaultClient when nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{BaseURL: baseURL, HTTP: httpClient}
}

// ResumeInfo mirrors the server's resume-handshake response.
type ResumeInfo struct {
	SessionID         string  `json:"sessionId"`
	FileName          string  `json:"fileName"`
	TotalChunks       int     `json:"totalChunks"`
	ReceivedChunks    []int   `json:"receivedChunks"`
	MissingChunks     []int   `json:"missingChunks"`
	NextExpectedChunk int     `json:"nextExpectedChunk"`
	UploadedBytes     int64   `json:"uploadedBytes"`
	FileSize          int64   `json:"fileSize"`
	ProgressPercent   float64 `json:"progressPercentage"`
	CanResume         bool    `json:"canResume"`
	Completed         bool    `json:"completed"`
	Failed            bool    `json:"failed"`
	ErrorMessage      string  `json:"errorMessage"`
}

// Finalize asks the server to assemble sessionID's chunks into the final
// file. Implements pump.Finalizer.
func (c *Client) Finalize(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/upload/"+url.PathEscape(sessionID)+"/complete", nil)
	if err != nil {
		return fmt.Errorf("apiclient: build finalize request: %w", err)
	}

	return c.doNoBody(req)
}

// Cancel asks the server to discard sessionID's partial upload.
func (c *Client) Cancel(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.BaseURL+"/upload/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return fmt.Errorf("apiclient: build cancel request: %w", err)
	}

	return c.doNoBody(req)
}

// Resume performs the resume handshake, telling the server the expected
// totalChunks, fileName and fileSize so it can create or describe the
// session.
func (c *Client) Resume(ctx context.Context, sessionID string, totalChunks int, fileName string, fileSize, chunkSize int64) (*ResumeInfo, error) {
	q := url.Values{}
	q.Set("totalChunks", strconv.Itoa(totalChunks))

	if fileName != "" {
		q.Set("fileName", fileName)
	}

	if fileSize > 0 {
		q.Set("fileSize", strconv.FormatInt(fileSize, 10))
	}

	if chunkSize > 0 {
		q.Set("chunkSize", strconv.FormatInt(chunkSize, 10))
	}

	reqURL := c.BaseURL + "/upload/" + url.PathEscape(sessionID) + "/resume?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build resume request: %w", err)
	}

	var info ResumeInfo
	if err := c.doJSON(req, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// Status fetches the current status record for sessionID.
func (c *Client) Status(ctx context.Context, sessionID string) (*ResumeInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/upload/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build status request: %w", err)
	}

	var info ResumeInfo
	if err := c.doJSON(req, &info); err != nil {
		return nil, err
	}

	return &info, nil
}

// HistoryEvent mirrors one row of the server's terminal-event audit log.
type HistoryEvent struct {
	SessionID string    `json:"SessionID"`
	Kind      string    `json:"Kind"`
	Timestamp time.Time `json:"Timestamp"`
	Bytes     int64     `json:"Bytes"`
	ErrorMsg  string    `json:"ErrorMsg"`
}

// History fetches the recorded terminal transitions for sessionID. Returns
// an error if the server was not started with audit logging enabled.
func (c *Client) History(ctx context.Context, sessionID string) ([]HistoryEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/upload/"+url.PathEscape(sessionID)+"/history", nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build history request: %w", err)
	}

	var events []HistoryEvent
	if err := c.doJSON(req, &events); err != nil {
		return nil, err
	}

	return events, nil
}

// RecentHistory fetches the most recent limit terminal transitions across
// all sessions.
func (c *Client) RecentHistory(ctx context.Context, limit int) ([]HistoryEvent, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/history/recent?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("apiclient: build recent history request: %w", err)
	}

	var events []HistoryEvent
	if err := c.doJSON(req, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (c *Client) doNoBody(req *http.Request) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("apiclient: server returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("apiclient: server returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}

	return nil
}
