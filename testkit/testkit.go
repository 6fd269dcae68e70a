package testkit

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/theory-cloud/apistack/pkg/composer"
	"github.com/theory-cloud/apistack/pkg/localgw"
	"github.com/theory-cloud/apistack/pkg/observability"
)

// Env is a deterministic local test environment for composed gateways.
type Env struct {
	Clock *ManualClock
	IDs   *ManualIDGenerator
	Log   *observability.TestLogger
}

func New() *Env {
	return NewWithTime(time.Unix(0, 0).UTC())
}

func NewWithTime(now time.Time) *Env {
	return &Env{
		Clock: NewManualClock(now),
		IDs:   NewManualIDGenerator(),
		Log:   observability.NewTestLogger(),
	}
}

// Gateway builds a local gateway whose clock, request IDs, trace IDs and logger come from e.
func (e *Env) Gateway(g composer.Graph, fn localgw.Function, opts ...localgw.Option) (*localgw.Gateway, error) {
	combined := make([]localgw.Option, 0, len(opts)+4)
	combined = append(combined,
		localgw.WithClock(e.Clock.Now),
		localgw.WithRequestIDs(e.IDs.NewID),
		localgw.WithTraceIDs(e.IDs.NewTraceID),
		localgw.WithLogger(e.Log),
	)
	combined = append(combined, opts...)
	return localgw.New(g, fn, combined...)
}

// Graph composes a graph for env with a fixed account and region.
func Graph(env string) composer.Graph {
	g, err := composer.Compose(composer.Settings{
		Environment: env,
		Account:     "123456789012",
		Region:      "us-east-1",
		AssetDir:    "bin",
	})
	if err != nil {
		panic(fmt.Sprintf("testkit: compose %q: %v", env, err))
	}
	return g
}

// ManualClock is a deterministic, mutable clock for tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(now time.Time) *ManualClock {
	return &ManualClock{now: now}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(now time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	out := c.now
	c.mu.Unlock()
	return out
}

// ManualIDGenerator is a deterministic, predictable ID generator for tests.
type ManualIDGenerator struct {
	mu     sync.Mutex
	prefix string
	next   int64
	queue  []string
}

func NewManualIDGenerator() *ManualIDGenerator {
	return &ManualIDGenerator{prefix: "test-id", next: 1}
}

func (g *ManualIDGenerator) Queue(ids ...string) {
	g.mu.Lock()
	g.queue = append(g.queue, ids...)
	g.mu.Unlock()
}

func (g *ManualIDGenerator) Reset() {
	g.mu.Lock()
	g.queue = nil
	g.next = 1
	g.mu.Unlock()
}

func (g *ManualIDGenerator) NewID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.queue) > 0 {
		out := g.queue[0]
		g.queue = g.queue[1:]
		return out
	}

	out := fmt.Sprintf("%s-%s", g.prefix, strconv.FormatInt(g.next, 10))
	g.next++
	return out
}

// NewTraceID returns an X-Ray shaped trace header built from the next ID.
func (g *ManualIDGenerator) NewTraceID() string {
	return "Root=1-00000000-" + g.NewID()
}
