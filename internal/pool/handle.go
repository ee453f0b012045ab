package pool

import (
	"context"
	"errors"
	"time"

	"gcli-nexus-go/internal/credential"
)

// ErrNoAvailableCredential signals that every active credential is in
// cooldown for the requested model or the pool is empty.
var ErrNoAvailableCredential = errors.New("no available credential")

// ErrServiceUnavailable signals that the pool goroutine has stopped.
var ErrServiceUnavailable = errors.New("credential service unavailable")

type getCredentialMsg struct {
	model string
	reply chan *credential.Assigned
}

type reportRateLimitMsg struct {
	id       int64
	model    string
	duration time.Duration
}

type reportInvalidMsg struct{ id int64 }

type reportBannedMsg struct{ id int64 }

type submitMsg struct {
	creds []credential.GoogleCredential
	done  chan struct{}
}

// Handle is the caller-facing side of the pool service. All methods
// funnel through the service's FIFO queue, so feedback reported by a
// dispatcher is applied before that dispatcher's next GetCredential.
type Handle struct {
	svc *Service
}

// GetCredential returns an eligible credential with a fresh access token
// for model, or ErrNoAvailableCredential.
func (h *Handle) GetCredential(ctx context.Context, model string) (credential.Assigned, error) {
	reply := make(chan *credential.Assigned, 1)
	msg := getCredentialMsg{model: model, reply: reply}

	select {
	case h.svc.msgs <- msg:
	case <-h.svc.done:
		return credential.Assigned{}, ErrServiceUnavailable
	case <-ctx.Done():
		return credential.Assigned{}, ctx.Err()
	}

	select {
	case assigned := <-reply:
		if assigned == nil {
			return credential.Assigned{}, ErrNoAvailableCredential
		}
		return *assigned, nil
	case <-h.svc.done:
		// The service may have answered just before stopping.
		select {
		case assigned := <-reply:
			if assigned != nil {
				return *assigned, nil
			}
		default:
		}
		return credential.Assigned{}, ErrServiceUnavailable
	case <-ctx.Done():
		return credential.Assigned{}, ctx.Err()
	}
}

// ReportRateLimit puts (id, model) into cooldown for d. Fire-and-forget.
func (h *Handle) ReportRateLimit(id int64, model string, d time.Duration) {
	h.send(reportRateLimitMsg{id: id, model: model, duration: d})
}

// ReportInvalid permanently disables a credential for this run (401).
func (h *Handle) ReportInvalid(id int64) {
	h.send(reportInvalidMsg{id: id})
}

// ReportBanned permanently disables a credential for this run (403).
func (h *Handle) ReportBanned(id int64) {
	h.send(reportBannedMsg{id: id})
}

// SubmitCredentials upserts a batch of imported credentials and waits for
// the pool to finish applying them.
func (h *Handle) SubmitCredentials(ctx context.Context, creds []credential.GoogleCredential) error {
	done := make(chan struct{})
	select {
	case h.svc.msgs <- submitMsg{creds: creds, done: done}:
	case <-h.svc.done:
		return ErrServiceUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-h.svc.done:
		return ErrServiceUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Handle) send(msg any) {
	select {
	case h.svc.msgs <- msg:
	case <-h.svc.done:
	}
}
