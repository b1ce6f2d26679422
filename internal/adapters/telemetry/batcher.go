// Package telemetry provides the OpenTelemetry tracer that records one span
// per target, and the processors that route those spans to the logger.
package telemetry

import (
	"bytes"
	"sync"
	"time"

	"go.trai.ch/zerr"
)

const (
	// DefaultSizeLimit is the buffered output size that forces a flush.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is the interval after which buffered output is flushed.
	DefaultTimeLimit = 50 * time.Millisecond
)

// ErrBatcherClosed is returned by Write after Close.
var ErrBatcherClosed = zerr.New("output batcher is closed")

// OutputBatcher buffers target output and hands it to onFlush in chunks, when
// sizeLimit bytes are buffered or timeLimit elapses. It is safe for concurrent use.
type OutputBatcher struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buffer bytes.Buffer
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewOutputBatcher starts a batcher. Non-positive limits select the defaults.
// Close must be called to stop its flush loop.
func NewOutputBatcher(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *OutputBatcher {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}

	b := &OutputBatcher{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
		ticker:    time.NewTicker(timeLimit),
		stopCh:    make(chan struct{}),
	}
	go b.loop()
	return b
}

// Write buffers p, flushing when the size limit is reached.
func (b *OutputBatcher) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, ErrBatcherClosed
	}

	n, _ := b.buffer.Write(p)
	if b.buffer.Len() >= b.sizeLimit {
		b.flushLocked()
		b.ticker.Reset(b.timeLimit)
	}
	return n, nil
}

// Flush hands any buffered output to onFlush.
func (b *OutputBatcher) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.closed {
		b.flushLocked()
	}
}

// Close flushes the remaining output and stops the flush loop. It is idempotent.
func (b *OutputBatcher) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	close(b.stopCh)
	b.flushLocked()
	return nil
}

func (b *OutputBatcher) loop() {
	for {
		select {
		case <-b.ticker.C:
			b.Flush()
		case <-b.stopCh:
			b.ticker.Stop()
			return
		}
	}
}

// flushLocked must be called with mu held. onFlush runs under the lock so
// chunks arrive in order.
func (b *OutputBatcher) flushLocked() {
	if b.buffer.Len() == 0 {
		return
	}
	data := bytes.Clone(b.buffer.Bytes())
	b.buffer.Reset()
	if b.onFlush != nil {
		b.onFlush(data)
	}
}
