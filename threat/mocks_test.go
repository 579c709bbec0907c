package threat

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"iochunt/core"
)

const testOrg = "org-1"

// =============================================================================
// Fake stores
// =============================================================================

type fakeIndicatorStore struct {
	mu         sync.RWMutex
	indicators map[string]*core.Indicator
	getErr     error
}

func newFakeIndicatorStore(inds ...*core.Indicator) *fakeIndicatorStore {
	s := &fakeIndicatorStore{indicators: make(map[string]*core.Indicator)}
	for _, ind := range inds {
		s.indicators[ind.ID] = ind
	}
	return s
}

func (s *fakeIndicatorStore) CreateIndicator(ctx context.Context, ind *core.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicators[ind.ID] = ind
	return nil
}

func (s *fakeIndicatorStore) GetIndicator(ctx context.Context, orgID, id string) (*core.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ind, ok := s.indicators[id]; ok && ind.OrgID == orgID {
		return ind, nil
	}
	return nil, core.NewNotFoundError("indicator", id)
}

func (s *fakeIndicatorStore) GetIndicators(ctx context.Context, orgID string, ids []string) ([]*core.Indicator, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Indicator, 0, len(ids))
	for _, id := range ids {
		if ind, ok := s.indicators[id]; ok && ind.OrgID == orgID {
			out = append(out, ind)
		}
	}
	return out, nil
}

func (s *fakeIndicatorStore) UpdateIndicator(ctx context.Context, ind *core.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indicators[ind.ID] = ind
	return nil
}

func (s *fakeIndicatorStore) DeleteIndicator(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.indicators, id)
	return nil
}

func (s *fakeIndicatorStore) ListIndicators(ctx context.Context, orgID string, filters *core.IndicatorFilters) ([]*core.Indicator, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Indicator, 0, len(s.indicators))
	for _, ind := range s.indicators {
		if ind.OrgID != orgID || (filters.ActiveOnly && !ind.IsActive) {
			continue
		}
		out = append(out, ind)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (s *fakeIndicatorStore) BulkCreateIndicators(ctx context.Context, orgID string, inds []*core.Indicator) (int, int, error) {
	for _, ind := range inds {
		_ = s.CreateIndicator(ctx, ind)
	}
	return len(inds), 0, nil
}

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*core.HuntJob
	// history records every persisted status in order
	history []core.HuntStatus
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: make(map[string]*core.HuntJob)}
}

func (s *fakeJobStore) CreateHuntJob(ctx context.Context, job *core.HuntJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeJobStore) GetHuntJob(ctx context.Context, orgID, id string) (*core.HuntJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.OrgID != orgID {
		return nil, core.NewNotFoundError("hunt job", id)
	}
	cp := *job
	return &cp, nil
}

func (s *fakeJobStore) UpdateHuntStatus(ctx context.Context, job *core.HuntJob, from core.HuntStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok {
		return core.NewNotFoundError("hunt job", job.ID)
	}
	if stored.Status != from {
		return core.NewConflictError("hunt job", job.ID, "expected status "+string(from)+", found "+string(stored.Status))
	}
	cp := *job
	s.jobs[job.ID] = &cp
	s.history = append(s.history, job.Status)
	return nil
}

func (s *fakeJobStore) DeleteHuntJob(ctx context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

func (s *fakeJobStore) ListHuntJobs(ctx context.Context, orgID string, limit, offset int) ([]*core.HuntJob, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.HuntJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out, int64(len(out)), nil
}

func (s *fakeJobStore) statuses() []core.HuntStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.HuntStatus(nil), s.history...)
}

type fakeMatchStore struct {
	mu        sync.Mutex
	matches   []*core.Match
	insertErr error
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{}
}

func (s *fakeMatchStore) InsertMatches(ctx context.Context, matches []*core.Match) (int, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matches = append(s.matches, matches...)
	return len(matches), nil
}

func (s *fakeMatchStore) GetMatch(ctx context.Context, orgID, id string) (*core.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.ID == id && m.OrgID == orgID {
			return m, nil
		}
	}
	return nil, core.NewNotFoundError("match", id)
}

func (s *fakeMatchStore) ListMatchesByJob(ctx context.Context, orgID, jobID string, filters *core.MatchFilters) ([]*core.Match, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*core.Match, 0)
	for _, m := range s.matches {
		if m.OrgID == orgID && m.HuntJobID == jobID {
			out = append(out, m)
		}
	}
	return out, int64(len(out)), nil
}

func (s *fakeMatchStore) CountMatchesByJob(ctx context.Context, orgID, jobID string) (int64, error) {
	_, n, err := s.ListMatchesByJob(ctx, orgID, jobID, nil)
	return n, err
}

func (s *fakeMatchStore) SetMatchReviewed(ctx context.Context, orgID, id string, reviewed bool, actor string, at time.Time) (*core.Match, error) {
	m, err := s.GetMatch(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := m.SetReviewed(reviewed, actor, at); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *fakeMatchStore) all() []*core.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*core.Match(nil), s.matches...)
}

// =============================================================================
// Fake backends
// =============================================================================

type fakeInventoryBackend struct {
	mu     sync.Mutex
	hits   map[string][]core.RawHit // needle -> hits
	err    error
	delay  time.Duration
	calls  []string
	limits []int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeInventoryBackend() *fakeInventoryBackend {
	return &fakeInventoryBackend{hits: make(map[string][]core.RawHit)}
}

func (b *fakeInventoryBackend) find(ctx context.Context, op, needle string, limit int) ([]core.RawHit, error) {
	b.mu.Lock()
	b.calls = append(b.calls, op+":"+needle)
	b.limits = append(b.limits, limit)
	hits, err, delay := b.hits[needle], b.err, b.delay
	b.mu.Unlock()

	n := b.inFlight.Add(1)
	defer b.inFlight.Add(-1)
	for {
		peak := b.maxInFlight.Load()
		if n <= peak || b.maxInFlight.CompareAndSwap(peak, n) {
			break
		}
	}

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	if err != nil {
		return nil, err
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (b *fakeInventoryBackend) FindByHash(ctx context.Context, orgID, hash string, limit int) ([]core.RawHit, error) {
	return b.find(ctx, "hash", hash, limit)
}

func (b *fakeInventoryBackend) FindByPathSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	return b.find(ctx, "path", needle, limit)
}

func (b *fakeInventoryBackend) FindByNameSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	return b.find(ctx, "name", needle, limit)
}

func (b *fakeInventoryBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

type fakeLogBackend struct {
	mu    sync.Mutex
	hits  map[string][]core.RawHit
	err   error
	calls int
}

func newFakeLogBackend() *fakeLogBackend {
	return &fakeLogBackend{hits: make(map[string][]core.RawHit)}
}

func (b *fakeLogBackend) FindByMessageSubstring(ctx context.Context, orgID, needle string, limit int) ([]core.RawHit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	hits := b.hits[needle]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (b *fakeLogBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type fakeEndpointDirectory struct {
	mu        sync.Mutex
	endpoints map[string]*core.Endpoint
	lookups   int
	err       error
}

func newFakeEndpointDirectory(eps ...*core.Endpoint) *fakeEndpointDirectory {
	d := &fakeEndpointDirectory{endpoints: make(map[string]*core.Endpoint)}
	for _, ep := range eps {
		d.endpoints[ep.ID] = ep
	}
	return d
}

func (d *fakeEndpointDirectory) GetEndpoints(ctx context.Context, orgID string, ids []string) (map[string]*core.Endpoint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lookups++
	if d.err != nil {
		return nil, d.err
	}
	out := make(map[string]*core.Endpoint)
	for _, id := range ids {
		if ep, ok := d.endpoints[id]; ok && ep.OrgID == orgID {
			out[id] = ep
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*HuntEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, event *HuntEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) types() []HuntEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]HuntEventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// =============================================================================
// Fixtures
// =============================================================================

func inventoryHit(endpointID, path string) core.RawHit {
	name := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			name = path[i+1:]
			break
		}
	}
	return core.RawHit{
		EndpointID:   endpointID,
		MatchedValue: path,
		Context: map[string]interface{}{
			"file_path":  path,
			"file_name":  name,
			"first_seen": "2026-01-02T03:04:05Z",
		},
	}
}

func hashHit(endpointID, hash string) core.RawHit {
	hit := inventoryHit(endpointID, `C:\Windows\Temp\dropper.exe`)
	hit.MatchedValue = hash
	hit.Context["sha256"] = hash
	return hit
}

func logHit(endpointID, message string) core.RawHit {
	return core.RawHit{
		EndpointID:   endpointID,
		MatchedValue: message,
		Context: map[string]interface{}{
			"message":    message,
			"event_time": "2026-01-02T03:04:05Z",
			"log_source": "sysmon",
		},
	}
}

func mustIndicator(value string) *core.Indicator {
	ind, err := core.NewIndicator(testOrg, value, "", "test", "analyst")
	if err != nil {
		panic(err)
	}
	return ind
}

func testSourceOptions(cap int) SourceOptions {
	return SourceOptions{ResultCap: cap, Timeout: 2 * time.Second, Breaker: DefaultBreakerConfig()}
}
