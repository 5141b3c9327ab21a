// Package oracle implements the engine side of the asynchronous
// decryption protocol. Every reveal request retains a purpose-context so
// that the later callback can be interpreted; a callback whose request id
// has no retained context cannot be resolved safely and is rejected.
// There is no timeout: an unanswered request keeps its context forever.
package oracle

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

var (
	// ErrSignatureVerification means the callback proofs do not
	// authenticate the revealed value. The callback is discarded and the
	// purpose-context stays retained.
	ErrSignatureVerification = errors.New("oracle: signature verification failed")
	// ErrUnknownRequest means no purpose-context is retained for the
	// request id.
	ErrUnknownRequest = errors.New("oracle: unknown request id")
)

// Kind says what a pending reveal is for.
type Kind string

const (
	KindBalanceInspect Kind = "balance_inspect"
	KindWithdrawPayout Kind = "withdraw_payout"
	KindDepositPull    Kind = "deposit_pull"
)

// Purpose is the retained context of one reveal request: whose value is
// being revealed, which asset it concerns, and what follow-up applies.
type Purpose struct {
	Kind    Kind
	Account uuid.UUID
	Asset   models.Asset
	Value   sealed.Value
}

// Client issues decrypt requests and resolves their callbacks.
type Client struct {
	mu      sync.Mutex
	svc     sealed.Service
	log     zerolog.Logger
	pending map[uuid.UUID]Purpose
}

// NewClient creates an oracle client over the given value service.
func NewClient(svc sealed.Service, log zerolog.Logger) *Client {
	return &Client{
		svc:     svc,
		log:     log.With().Str("component", "oracle").Logger(),
		pending: make(map[uuid.UUID]Purpose),
	}
}

// Request starts a reveal of v and retains p under the returned id.
func (c *Client) Request(v sealed.Value, p Purpose) (uuid.UUID, error) {
	id, err := c.svc.RequestDecrypt(v)
	if err != nil {
		return uuid.Nil, fmt.Errorf("oracle: decrypt request: %w", err)
	}
	c.mu.Lock()
	c.pending[id] = p
	c.mu.Unlock()
	c.log.Debug().Stringer("request_id", id).Str("kind", string(p.Kind)).
		Stringer("account", p.Account).Msg("reveal requested")
	return id, nil
}

// Resolve verifies a callback and, on success, retires and returns the
// retained purpose exactly once. A failed verification leaves the
// context retained; an unknown id is rejected outright.
func (c *Client) Resolve(requestID uuid.UUID, result uint64, proofs [][]byte) (Purpose, error) {
	if !c.svc.VerifySignatures(requestID, result, proofs) {
		c.log.Warn().Stringer("request_id", requestID).Msg("rejected callback with bad proofs")
		return Purpose{}, ErrSignatureVerification
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.pending[requestID]
	if !ok {
		return Purpose{}, ErrUnknownRequest
	}
	delete(c.pending, requestID)
	return p, nil
}

// PendingCount reports how many purpose-contexts are retained.
func (c *Client) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
