// Package pump implements the client-side chunk pump: the bounded-
// concurrency worker pool that drives one file's upload through its
// missing-chunk set, honoring pause/resume/cancel and reporting progress.
package pump

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	stdsync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/chunkrelay/chunkrelay/internal/client/retry"
	"github.com/chunkrelay/chunkrelay/internal/client/slicer"
	"github.com/chunkrelay/chunkrelay/internal/client/transport"
)

// State is a Task's position in the upload state machine.
type State int

const (
	StatePending State = iota
	StateUploading
	StatePaused
	StateCompleting
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUploading:
		return "uploading"
	case StatePaused:
		return "paused"
	case StateCompleting:
		return "completing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ErrCancelled is returned by Run when the task was cancelled before or
// during the upload.
var ErrCancelled = errors.New("pump: upload cancelled")

// Finalizer completes a session server-side once every chunk has arrived.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID string) error
}

// Options configures one Task.
type Options struct {
	SessionID   string
	BaseURL     string
	FilePath    string
	FileName    string
	ChunkSize   int64
	Concurrency int
	Sender      transport.Sender
	Finalizer   Finalizer
	RetryPolicy *retry.Policy
	ChunkTimeout time.Duration
	Logger      *slog.Logger

	// Missing restricts the pump to only these chunk indexes, used when
	// resuming a partially-uploaded session. A nil slice means "all
	// chunks", computed from the file size and chunk size.
	Missing []int
}

// Progress is a point-in-time snapshot of a Task's transfer progress.
type Progress struct {
	State            State
	UploadedBytes    int64
	TotalBytes       int64
	ChunksDone       int32
	ChunksTotal      int32
	BytesPerSecond   float64
	RemainingSeconds float64
}

// Task drives a single file's upload through the pump's state machine.
type Task struct {
	opts Options

	file     *os.File
	fileSize int64
	ranges   []slicer.Range

	state   atomic.Int32
	paused  atomic.Bool
	pauseCh chan struct{} // closed when resumed; recreated on Pause

	cancel context.CancelFunc

	uploadedBytes atomic.Int64
	chunksDone    atomic.Int32

	startedAt stdsync.Once
	startTime time.Time

	mu       stdsync.Mutex
	lastErr  error
	progress chan Progress
}

// New opens filePath and prepares a Task ready to Run. The file is closed
// automatically when Run returns.
func New(opts Options) (*Task, error) {
	if opts.ChunkSize <= 0 {
		return nil, fmt.Errorf("pump: chunk size must be positive")
	}

	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}

	if opts.RetryPolicy == nil {
		opts.RetryPolicy = retry.NewPolicy(retry.DefaultMaxAttempts)
	}

	if opts.ChunkTimeout <= 0 {
		opts.ChunkTimeout = 30 * time.Second
	}

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	f, err := os.Open(opts.FilePath)
	if err != nil {
		return nil, fmt.Errorf("pump: open file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pump: stat file: %w", err)
	}

	ranges, err := slicer.Plan(info.Size(), opts.ChunkSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("pump: plan chunks: %w", err)
	}

	if opts.Missing != nil {
		ranges = filterRanges(ranges, opts.Missing)
	}

	t := &Task{
		opts:     opts,
		file:     f,
		fileSize: info.Size(),
		ranges:   ranges,
		pauseCh:  closedChan(),
		progress: make(chan Progress, 64),
	}
	t.state.Store(int32(StatePending))

	return t, nil
}

func filterRanges(all []slicer.Range, missing []int) []slicer.Range {
	want := make(map[int]struct{}, len(missing))
	for _, idx := range missing {
		want[idx] = struct{}{}
	}

	out := make([]slicer.Range, 0, len(missing))

	for _, r := range all {
		if _, ok := want[r.Index]; ok {
			out = append(out, r)
		}
	}

	return out
}

func closedChan() chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

// State reports the task's current state machine position.
func (t *Task) State() State {
	return State(t.state.Load())
}

// SessionID returns the session id this task was configured to upload
// against.
func (t *Task) SessionID() string {
	return t.opts.SessionID
}

// FilePath returns the local file path this task reads from.
func (t *Task) FilePath() string {
	return t.opts.FilePath
}

// FileSize returns the size of the file backing this task, in bytes.
func (t *Task) FileSize() int64 {
	return t.fileSize
}

// Progress returns a channel of progress snapshots emitted as chunks
// complete. The channel is closed when Run returns.
func (t *Task) Progress() <-chan Progress {
	return t.progress
}

// Pause blocks new chunk sends from starting; in-flight sends complete.
func (t *Task) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.paused.CompareAndSwap(false, true) {
		t.pauseCh = make(chan struct{})
		t.state.Store(int32(StatePaused))
	}
}

// Resume releases a paused task.
func (t *Task) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.paused.CompareAndSwap(true, false) {
		close(t.pauseCh)
		t.state.Store(int32(StateUploading))
	}
}

// Cancel aborts the task. The run's context is cancelled, so in-flight
// chunk sends are aborted and no further chunks are dispatched.
func (t *Task) Cancel() {
	t.state.Store(int32(StateCancelled))

	if t.cancel != nil {
		t.cancel()
	}
}

// Run dispatches all configured ranges with bounded concurrency, retrying
// each per opts.RetryPolicy, then finalizes the session once every chunk
// has been acknowledged. It closes the file and the progress channel
// before returning.
func (t *Task) Run(ctx context.Context) error {
	defer t.file.Close()
	defer close(t.progress)

	if t.State() == StateCancelled {
		return ErrCancelled
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	defer cancel()

	t.state.Store(int32(StateUploading))
	t.startedAt.Do(func() { t.startTime = time.Now() })

	sem := semaphore.NewWeighted(int64(t.opts.Concurrency))

	var wg stdsync.WaitGroup
	var firstErr atomic.Pointer[error]

	for _, r := range t.ranges {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}

		r := r

		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()

			if err := t.waitForResume(ctx); err != nil {
				storeFirstErr(&firstErr, err)
				return
			}

			if err := t.sendRange(ctx, r); err != nil {
				storeFirstErr(&firstErr, err)
				cancel()

				return
			}

			t.recordProgress(r)
		}()
	}

	wg.Wait()

	if t.State() == StateCancelled {
		return ErrCancelled
	}

	if p := firstErr.Load(); p != nil {
		t.state.Store(int32(StateFailed))
		t.setLastErr(*p)

		return *p
	}

	t.state.Store(int32(StateCompleting))

	if t.opts.Finalizer != nil {
		if err := t.opts.Finalizer.Finalize(ctx, t.opts.SessionID); err != nil {
			t.state.Store(int32(StateFailed))
			t.setLastErr(err)

			return fmt.Errorf("pump: finalize: %w", err)
		}
	}

	t.state.Store(int32(StateCompleted))

	return nil
}

func storeFirstErr(p *atomic.Pointer[error], err error) {
	e := err
	p.CompareAndSwap(nil, &e)
}

func (t *Task) waitForResume(ctx context.Context) error {
	for {
		t.mu.Lock()
		ch := t.pauseCh
		t.mu.Unlock()

		select {
		case <-ch:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (t *Task) sendRange(ctx context.Context, r slicer.Range) error {
	data, err := slicer.Read(t.file, r)
	if err != nil {
		return err
	}

	chunk := transport.Chunk{
		SessionID:   t.opts.SessionID,
		ChunkIndex:  r.Index,
		TotalChunks: slicer.Count(t.fileSize, t.opts.ChunkSize),
		FileName:    t.opts.FileName,
		Data:        data,
	}

	var lastErr error

	for attempt := 0; attempt < t.opts.RetryPolicy.MaxAttempts; attempt++ {
		if t.State() == StateCancelled {
			return ErrCancelled
		}

		sendCtx, cancel := context.WithTimeout(ctx, t.opts.ChunkTimeout)
		result, sendErr := t.opts.Sender.Send(sendCtx, t.opts.BaseURL, chunk)
		cancel()

		if sendErr == nil {
			return nil
		}

		lastErr = sendErr

		if !retry.ShouldRetry(result.StatusCode, sendErr) {
			return fmt.Errorf("pump: chunk %d failed permanently: %w", r.Index, sendErr)
		}

		if attempt < t.opts.RetryPolicy.MaxAttempts-1 {
			t.opts.Logger.Warn("pump: retrying chunk",
				slog.Int("chunk", r.Index),
				slog.Int("attempt", attempt+1),
				slog.String("error", sendErr.Error()),
			)

			if sleepErr := t.opts.RetryPolicy.Sleep(ctx, attempt); sleepErr != nil {
				return sleepErr
			}
		}
	}

	return fmt.Errorf("pump: chunk %d exhausted retries: %w", r.Index, lastErr)
}

func (t *Task) recordProgress(r slicer.Range) {
	uploaded := t.uploadedBytes.Add(r.Len())
	done := t.chunksDone.Add(1)

	elapsed := time.Since(t.startTime).Seconds()

	var bps, remaining float64
	if elapsed > 0 {
		bps = float64(uploaded) / elapsed
	}

	if bps > 0 {
		remaining = float64(t.fileSize-uploaded) / bps
	}

	p := Progress{
		State:            t.State(),
		UploadedBytes:    uploaded,
		TotalBytes:       t.fileSize,
		ChunksDone:       done,
		ChunksTotal:      int32(len(t.ranges)),
		BytesPerSecond:   bps,
		RemainingSeconds: remaining,
	}

	select {
	case t.progress <- p:
	default:
		// Slow consumer: drop the snapshot rather than block the pump.
	}
}

func (t *Task) setLastErr(err error) {
	t.mu.Lock()
	t.lastErr = err
	t.mu.Unlock()
}

// LastErr returns the error that caused the task to fail, if any.
func (t *Task) LastErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.lastErr
}

