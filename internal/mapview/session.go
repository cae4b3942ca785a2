package mapview

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/picklehealth/pickle-map/internal/domain"
	"golang.org/x/sync/errgroup"
)

// DataSource supplies a disease and the regions for one drill level. An
// empty id asks Subregions for the top-level countries.
type DataSource interface {
	Disease(ctx context.Context, id string) (domain.Disease, error)
	Subregions(ctx context.Context, id string) ([]domain.Region, error)
}

// Phase is the fetch status of the current feature set.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseEmpty
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseEmpty:
		return "empty"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// View is a snapshot of everything the host needs to render the map.
type View struct {
	Phase       Phase
	Err         error
	DiseaseID   string
	DiseaseName string
	LayerKey    string
	Zoom        float64
	Features    []domain.Feature
	Skipped     []string
	// Bound is the normalization bound. Shaded is false when no feature has a
	// rate, and every feature is drawn with NeutralStyle.
	Bound  float64
	Shaded bool
	Info   InfoBox
}

// Style returns the style for one of the view's features.
func (v View) Style(f domain.Feature) Style {
	if !v.Shaded {
		return NeutralStyle
	}
	return StyleFor(f, v.Bound)
}

type loadKey struct {
	disease string
	country string
}

type projected struct {
	diseaseName string
	projection  domain.Projection
	bound       float64
	shaded      bool
}

// Session binds interaction state to the data for the current disease and
// drill level. It is safe for concurrent use.
type Session struct {
	source    DataSource
	projector *domain.Projector
	logger    *slog.Logger

	mu        sync.Mutex
	state     State
	diseaseID string
	gen       uint64
	phase     Phase
	err       error
	current   *projected
	memo      map[loadKey]*projected
	cancel    context.CancelFunc

	inflight sync.WaitGroup
}

// NewSession creates an idle session in the world view.
func NewSession(source DataSource, projector *domain.Projector, logger *slog.Logger) *Session {
	return &Session{
		source:    source,
		projector: projector,
		logger:    logger,
		state:     NewState(),
		memo:      make(map[loadKey]*projected),
	}
}

// SetDisease switches the disease shown. Setting the current disease again
// is a no-op, so an errored load is only retried after a dependency change.
func (s *Session) SetDisease(ctx context.Context, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == s.diseaseID {
		return
	}
	s.diseaseID = id
	clear(s.memo)
	s.reloadLocked(ctx)
}

// Dispatch folds a host event into the session and returns the effects the
// host must apply. A change of drill level starts a new load.
func (s *Session) Dispatch(ctx context.Context, ev Event) []Effect {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := s.state.LayerKey()
	next, effects := Reduce(s.state, ev)
	s.state = next
	if next.LayerKey() != before {
		s.reloadLocked(ctx)
	}
	return effects
}

// Close cancels any load in flight and waits for it to settle.
func (s *Session) Close() {
	s.mu.Lock()
	s.gen++
	s.cancelLocked()
	s.mu.Unlock()
	s.inflight.Wait()
}

// Wait blocks until every load started so far has settled.
func (s *Session) Wait() {
	s.inflight.Wait()
}

// State returns the current interaction state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// View returns a snapshot of the map.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		Phase:     s.phase,
		Err:       s.err,
		DiseaseID: s.diseaseID,
		LayerKey:  s.state.LayerKey(),
		Zoom:      s.state.Zoom,
		Info:      InfoFor(s.state, s.phase == PhaseLoading),
	}
	if s.current != nil {
		v.DiseaseName = s.current.diseaseName
		v.Features = s.current.projection.Features
		v.Bound = s.current.bound
		v.Shaded = s.current.shaded
		for _, skipped := range s.current.projection.Skipped {
			v.Skipped = append(v.Skipped, skipped.RegionID)
		}
	}
	return v
}

// reloadLocked moves the session to the current dependency key. A load
// still in flight for an older key is cancelled and discarded when it
// settles. Loads outlive the caller's context; only a dependency change or
// Close stops them.
func (s *Session) reloadLocked(ctx context.Context) {
	s.cancelLocked()
	s.gen++
	s.current = nil
	s.err = nil

	if s.diseaseID == "" {
		s.phase = PhaseIdle
		return
	}

	key := loadKey{disease: s.diseaseID, country: s.state.LayerKey()}
	if p, ok := s.memo[key]; ok {
		s.applyLocked(p)
		return
	}

	s.phase = PhaseLoading
	gen := s.gen
	loadCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		p, err := s.load(loadCtx, key)
		s.settle(key, gen, p, err)
	}()
}

func (s *Session) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Session) load(ctx context.Context, key loadKey) (*projected, error) {
	var (
		disease domain.Disease
		regions []domain.Region
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := s.source.Disease(gctx, key.disease)
		if err != nil {
			return fmt.Errorf("fetch disease %s: %w", key.disease, err)
		}
		disease = d
		return nil
	})
	g.Go(func() error {
		r, err := s.source.Subregions(gctx, key.country)
		if err != nil {
			return fmt.Errorf("fetch regions %q: %w", key.country, err)
		}
		regions = r
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	proj, err := s.projector.Project(disease, regions)
	if err != nil {
		return nil, err
	}
	for _, skipped := range proj.Skipped {
		s.logger.Warn("skipping region with malformed geometry",
			"disease", key.disease, "region", skipped.RegionID, "error", skipped.Err)
	}

	bound, shaded := domain.NormalizationBound(proj.Features, domain.MinWorstPerMillion)
	return &projected{
		diseaseName: disease.Name,
		projection:  proj,
		bound:       bound,
		shaded:      shaded,
	}, nil
}

func (s *Session) settle(key loadKey, gen uint64, p *projected, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen {
		s.logger.Debug("discarding stale map load", "disease", key.disease, "country", key.country)
		return
	}
	if err != nil {
		s.logger.Error("map load failed", "disease", key.disease, "country", key.country, "error", err)
		s.phase = PhaseError
		s.err = err
		return
	}
	s.memo[key] = p
	s.applyLocked(p)
}

func (s *Session) applyLocked(p *projected) {
	s.current = p
	if len(p.projection.Features) == 0 {
		s.phase = PhaseEmpty
		return
	}
	s.phase = PhaseReady
}
