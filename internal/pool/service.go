package pool

import (
	"context"
	"sort"
	"time"

	"gcli-nexus-go/internal/credential"
	"gcli-nexus-go/internal/storage"

	log "github.com/sirupsen/logrus"
)

// RefreshSkew is the window before expiry inside which a token is
// refreshed during selection.
const RefreshSkew = 60 * time.Second

const defaultQueueSize = 64

// Refresher is the token exchange the pool calls during selection.
type Refresher interface {
	Refresh(ctx context.Context, rec credential.Record) (string, time.Time, error)
}

type cooldownKey struct {
	id    int64
	model string
}

// Service owns every credential record and serializes all access through
// a single goroutine draining a message queue. Because one goroutine owns
// the state there are no locks and no concurrent-refresh dedup problem:
// at most one refresh is ever in flight.
type Service struct {
	repo      storage.Repository
	refresher Refresher
	now       func() time.Time

	msgs chan any
	done chan struct{}

	ctx      context.Context
	creds    map[int64]*credential.Record
	byToken  map[string]int64
	cooldown map[cooldownKey]time.Time
	// lastID is the round-robin cursor: the id handed out most recently.
	lastID int64
}

// Option customizes Service creation.
type Option func(*Service)

// WithNowFunc overrides the clock (testing).
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a pool service over repo and refresher. Call Start to load
// persisted rows and begin processing.
func New(repo storage.Repository, refresher Refresher, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		refresher: refresher,
		now:       time.Now,
		msgs:      make(chan any, defaultQueueSize),
		done:      make(chan struct{}),
		creds:     make(map[int64]*credential.Record),
		byToken:   make(map[string]int64),
		cooldown:  make(map[cooldownKey]time.Time),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Start loads stored credentials and launches the service goroutine. The
// returned Handle is the only way to talk to the pool.
func (s *Service) Start(ctx context.Context) (*Handle, error) {
	rows, err := s.repo.LoadActive(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rec := rows[i].Clone()
		s.creds[rec.ID] = rec
		s.byToken[rec.RefreshToken] = rec.ID
	}
	log.Infof("credential pool loaded %d stored credentials", len(rows))

	s.ctx = ctx
	go s.run(ctx)
	return &Handle{svc: s}, nil
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case msg := <-s.msgs:
			s.dispatch(msg)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) dispatch(msg any) {
	switch m := msg.(type) {
	case getCredentialMsg:
		m.reply <- s.handleGet(m.model)
	case reportRateLimitMsg:
		s.handleRateLimit(m.id, m.model, m.duration)
	case reportInvalidMsg:
		s.handleDisable(m.id, "invalid")
	case reportBannedMsg:
		s.handleDisable(m.id, "banned")
	case submitMsg:
		s.handleSubmit(m.creds)
		close(m.done)
	}
}

// eligibleIDs returns the ids assignable for model at now, ascending.
func (s *Service) eligibleIDs(model string, now time.Time) []int64 {
	ids := make([]int64, 0, len(s.creds))
	for id, rec := range s.creds {
		if !rec.Status {
			continue
		}
		if until, ok := s.cooldown[cooldownKey{id: id, model: model}]; ok && until.After(now) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Service) handleGet(model string) *credential.Assigned {
	now := s.now()
	eligible := s.eligibleIDs(model, now)
	if len(eligible) == 0 {
		return nil
	}

	// Round-robin: resume after the most recently assigned id, wrapping.
	start := 0
	for i, id := range eligible {
		if id > s.lastID {
			start = i
			break
		}
	}

	for i := 0; i < len(eligible); i++ {
		id := eligible[(start+i)%len(eligible)]
		rec := s.creds[id]

		if rec.AccessToken != "" && rec.Expiry.After(now.Add(RefreshSkew)) {
			s.lastID = id
			assigned := rec.Assigned()
			return &assigned
		}

		token, expiry, err := s.refresher.Refresh(s.ctx, *rec.Clone())
		if err != nil {
			log.WithError(err).WithField("credential_id", id).Warn("token refresh failed")
			if rec.AccessToken != "" && rec.Expiry.After(now) {
				// Previous token is still usable, hand it out as-is.
				s.lastID = id
				assigned := rec.Assigned()
				return &assigned
			}
			continue
		}

		rec.AccessToken = token
		if expiry.After(rec.Expiry) {
			rec.Expiry = expiry
		}
		if err := s.repo.Upsert(s.ctx, rec); err != nil {
			log.WithError(err).WithField("credential_id", id).Warn("failed to persist refreshed token")
		}

		s.lastID = id
		assigned := rec.Assigned()
		return &assigned
	}
	return nil
}

func (s *Service) handleRateLimit(id int64, model string, d time.Duration) {
	if _, ok := s.creds[id]; !ok {
		return
	}
	if d < 0 {
		d = 0
	}
	until := s.now().Add(d)
	s.cooldown[cooldownKey{id: id, model: model}] = until
	log.WithFields(log.Fields{
		"credential_id": id,
		"model":         model,
		"until":         until.Format(time.RFC3339),
	}).Info("credential rate limited")
}

func (s *Service) handleDisable(id int64, reason string) {
	rec, ok := s.creds[id]
	if !ok || !rec.Status {
		return
	}
	rec.Status = false
	if err := s.repo.UpdateStatus(s.ctx, id, false); err != nil {
		log.WithError(err).WithField("credential_id", id).Warn("failed to persist disabled status")
	}
	log.WithFields(log.Fields{
		"credential_id": id,
		"reason":        reason,
	}).Warn("credential disabled")
}

func (s *Service) handleSubmit(creds []credential.GoogleCredential) {
	for _, g := range creds {
		if g.RefreshToken == "" {
			continue
		}
		if id, ok := s.byToken[g.RefreshToken]; ok {
			s.updateExisting(s.creds[id], g)
			continue
		}

		rec := g.Record()
		if err := s.repo.Upsert(s.ctx, &rec); err != nil {
			log.WithError(err).WithField("project_id", g.ProjectID).Error("failed to persist imported credential")
			continue
		}
		stored := rec.Clone()
		s.creds[stored.ID] = stored
		s.byToken[stored.RefreshToken] = stored.ID
		log.WithFields(log.Fields{
			"credential_id": stored.ID,
			"project_id":    stored.ProjectID,
		}).Info("credential imported")
	}
}

// updateExisting refreshes the non-key fields of a known credential.
// Status is deliberately left alone: a disabled tombstone stays disabled
// even if the same refresh token is imported again.
func (s *Service) updateExisting(rec *credential.Record, g credential.GoogleCredential) {
	rec.Email = g.Email
	rec.ClientID = g.ClientID
	rec.ClientSecret = g.ClientSecret
	rec.ProjectID = g.ProjectID
	rec.Scopes = append([]string(nil), g.Scopes...)
	if g.AccessToken != "" && g.Expiry.After(rec.Expiry) {
		rec.AccessToken = g.AccessToken
		rec.Expiry = g.Expiry
	}
	if err := s.repo.Upsert(s.ctx, rec); err != nil {
		log.WithError(err).WithField("credential_id", rec.ID).Warn("failed to persist updated credential")
	}
}
