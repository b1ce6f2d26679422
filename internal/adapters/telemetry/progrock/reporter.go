package progrock

import (
	_ "crypto/sha256" // registers the digest algorithm
	"fmt"
	"sync"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/kiln/internal/core/domain"
	"go.trai.ch/kiln/internal/core/ports"
)

// Reporter is a ports.Reporter recording one vertex per target.
type Reporter struct {
	w   progrock.Writer
	rec *progrock.Recorder

	mu       sync.Mutex
	vertices map[string]*progrock.VertexRecorder
}

var _ ports.Reporter = (*Reporter)(nil)

// New creates a Reporter writing the tape to the progress file under root.
func New(root string) (*Reporter, error) {
	w, err := CreateJSONLWriter(domain.DefaultProgressPath(root))
	if err != nil {
		return nil, err
	}
	return NewReporter(w), nil
}

// NewReporter creates a Reporter on w.
func NewReporter(w progrock.Writer) *Reporter {
	return &Reporter{
		w:        w,
		rec:      progrock.NewRecorder(w),
		vertices: make(map[string]*progrock.VertexRecorder),
	}
}

// OnPlan does nothing; vertices are created when targets start.
func (r *Reporter) OnPlan(_ []string) {}

// OnEvent updates the vertex of the event's target.
func (r *Reporter) OnEvent(ev domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch ev.Kind {
	case domain.EventBuilding:
		r.vertex(ev.Target)
	case domain.EventSkipped:
		v := r.vertex(ev.Target)
		v.Cached()
		v.Done(nil)
	case domain.EventWouldBuild, domain.EventSucceeded:
		r.vertex(ev.Target).Done(nil)
	case domain.EventRetrying:
		_, _ = fmt.Fprintf(r.vertex(ev.Target).Stderr(), "attempt %d failed, retrying in %s: %v\n", ev.Attempt, ev.Delay, ev.Err)
	case domain.EventFailed:
		v := r.vertex(ev.Target)
		if ev.Output != "" {
			_, _ = v.Stderr().Write([]byte(ev.Output))
		}
		v.Done(ev.Err)
	case domain.EventBlocked:
		r.vertex(ev.Target).Done(domain.ErrBlockedByFailure)
	case domain.EventVerifyWarning:
		if ev.Target != "" {
			_, _ = fmt.Fprintf(r.vertex(ev.Target).Stderr(), "warning: %v\n", ev.Err)
		}
	default:
	}
}

// vertex must be called with mu held.
func (r *Reporter) vertex(name string) *progrock.VertexRecorder {
	v, ok := r.vertices[name]
	if !ok {
		v = r.rec.Vertex(digest.FromString(name), name)
		r.vertices[name] = v
	}
	return v
}

// OnSummary does nothing; the tape already holds every outcome.
func (r *Reporter) OnSummary(_ *domain.BuildReport) {}

// Close closes the tape writer.
func (r *Reporter) Close() error {
	return r.w.Close()
}
