package gemini

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gcli-nexus-go/internal/credential"
	"gcli-nexus-go/internal/pool"

	"github.com/stretchr/testify/require"
)

// memRepo is a minimal in-memory Repository for wiring the real pool
// actor behind the dispatcher.
type memRepo struct {
	mu     sync.Mutex
	rows   map[int64]credential.Record
	nextID int64
}

func newMemRepo() *memRepo { return &memRepo{rows: make(map[int64]credential.Record)} }

func (r *memRepo) LoadActive(ctx context.Context) ([]credential.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]credential.Record, 0, len(r.rows))
	for id := int64(1); id <= r.nextID; id++ {
		if row, ok := r.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *memRepo) Upsert(ctx context.Context, rec *credential.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, row := range r.rows {
		if row.RefreshToken == rec.RefreshToken {
			rec.ID = id
			r.rows[id] = *rec
			return nil
		}
	}
	r.nextID++
	rec.ID = r.nextID
	r.rows[rec.ID] = *rec
	return nil
}

func (r *memRepo) UpdateStatus(ctx context.Context, id int64, status bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return fmt.Errorf("credential %d not found", id)
	}
	row.Status = status
	r.rows[id] = row
	return nil
}

func (r *memRepo) Close() error { return nil }

type staticRefresher struct{}

func (staticRefresher) Refresh(ctx context.Context, rec credential.Record) (string, time.Time, error) {
	return "", time.Time{}, fmt.Errorf("refresh should not be needed")
}

func TestUnauthorizedCascadeDisablesWholePool(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"invalid credentials"}}`))
	}))
	defer srv.Close()

	repo := newMemRepo()
	for i := 1; i <= 3; i++ {
		rec := credential.Record{
			ClientID:     "cid",
			ClientSecret: "sec",
			ProjectID:    fmt.Sprintf("p%d", i),
			RefreshToken: fmt.Sprintf("rt-%d", i),
			AccessToken:  fmt.Sprintf("tok-%d", i),
			Expiry:       time.Now().Add(time.Hour),
			Status:       true,
		}
		require.NoError(t, repo.Upsert(context.Background(), &rec))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handle, err := pool.New(repo, staticRefresher{}).Start(ctx)
	require.NoError(t, err)

	r := routerFor(newTestHandlerWithPool(t, srv.URL, handle))

	w := post(r, "/unary/m", `{}`)
	require.Equal(t, http.StatusUnauthorized, w.Code, "last 401 is surfaced verbatim")
	require.JSONEq(t, `{"error":{"code":401,"message":"invalid credentials"}}`, w.Body.String())

	w = post(r, "/unary/m", `{}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.JSONEq(t, `{"error":"no available credential"}`, w.Body.String())

	rows, err := repo.LoadActive(context.Background())
	require.NoError(t, err)
	for _, row := range rows {
		require.False(t, row.Status, "credential %d persisted as disabled", row.ID)
	}
}
