package progrock_test

import (
	"bufio"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vito/progrock"
	kilnprogrock "go.trai.ch/kiln/internal/adapters/telemetry/progrock"
	"go.trai.ch/kiln/internal/core/domain"
	"google.golang.org/protobuf/encoding/protojson"
)

type tape struct {
	mu      sync.Mutex
	updates []*progrock.StatusUpdate
	closed  bool
}

func (t *tape) WriteStatus(u *progrock.StatusUpdate) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updates = append(t.updates, u)
	return nil
}

func (t *tape) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

// latest returns the last recorded state of every vertex by name.
func (t *tape) latest() map[string]*progrock.Vertex {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*progrock.Vertex)
	for _, u := range t.updates {
		for _, v := range u.GetVertexes() {
			out[v.GetName()] = v
		}
	}
	return out
}

func (t *tape) logs() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var s string
	for _, u := range t.updates {
		for _, l := range u.GetLogs() {
			s += string(l.GetData())
		}
	}
	return s
}

func TestReporter_Outcomes(t *testing.T) {
	t.Parallel()

	tp := &tape{}
	r := kilnprogrock.NewReporter(tp)

	r.OnPlan([]string{"a", "b", "c", "d"})
	r.OnEvent(domain.Event{Kind: domain.EventSkipped, Target: "a"})
	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "b"})
	r.OnEvent(domain.Event{Kind: domain.EventSucceeded, Target: "b"})
	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "c"})
	r.OnEvent(domain.Event{Kind: domain.EventRetrying, Target: "c", Attempt: 1, Delay: time.Second, Err: errors.New("flaky")})
	r.OnEvent(domain.Event{Kind: domain.EventFailed, Target: "c", Err: errors.New("exit status 1"), Output: "cc: error\n"})
	r.OnEvent(domain.Event{Kind: domain.EventBlocked, Target: "d"})
	r.OnSummary(&domain.BuildReport{})
	require.NoError(t, r.Close())
	assert.True(t, tp.closed)

	v := tp.latest()
	require.Len(t, v, 4)

	assert.True(t, v["a"].GetCached())
	assert.NotNil(t, v["a"].GetCompleted())

	assert.False(t, v["b"].GetCached())
	assert.NotNil(t, v["b"].GetCompleted())
	assert.Empty(t, v["b"].GetError())

	assert.Equal(t, "exit status 1", v["c"].GetError())
	assert.Contains(t, v["d"].GetError(), "dependency failed")

	logs := tp.logs()
	assert.Contains(t, logs, "attempt 1 failed, retrying in 1s: flaky")
	assert.Contains(t, logs, "cc: error")
}

func TestNew_WritesJSONLines(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	r, err := kilnprogrock.New(root)
	require.NoError(t, err)

	r.OnEvent(domain.Event{Kind: domain.EventBuilding, Target: "out.txt"})
	r.OnEvent(domain.Event{Kind: domain.EventSucceeded, Target: "out.txt"})
	require.NoError(t, r.Close())

	path := domain.DefaultProgressPath(root)
	assert.Equal(t, filepath.Join(root, ".kiln"), filepath.Dir(path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var u progrock.StatusUpdate
		require.NoError(t, protojson.Unmarshal(sc.Bytes(), &u))
		for _, v := range u.GetVertexes() {
			names = append(names, v.GetName())
		}
	}
	require.NoError(t, sc.Err())
	assert.NotEmpty(t, names)
	assert.Subset(t, []string{"out.txt"}, names)
}
