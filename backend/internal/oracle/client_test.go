package oracle

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

func TestResolveExactlyOnce(t *testing.T) {
	svc := sealed.NewPlain()
	client := NewClient(svc, zerolog.Nop())

	v, err := svc.Seal(500)
	require.NoError(t, err)
	account := uuid.New()

	id, err := client.Request(v, Purpose{
		Kind:    KindBalanceInspect,
		Account: account,
		Asset:   models.Asset("USD"),
		Value:   v,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, client.PendingCount())

	p, err := client.Resolve(id, 500, svc.SignResult(id, 500))
	require.NoError(t, err)
	assert.Equal(t, KindBalanceInspect, p.Kind)
	assert.Equal(t, account, p.Account)
	assert.Equal(t, 0, client.PendingCount())

	// The context is retired; a replayed callback cannot resolve again.
	_, err = client.Resolve(id, 500, svc.SignResult(id, 500))
	assert.ErrorIs(t, err, ErrUnknownRequest)
}

func TestResolveRejectsBadProofs(t *testing.T) {
	svc := sealed.NewPlain()
	client := NewClient(svc, zerolog.Nop())

	v, _ := svc.Seal(500)
	id, err := client.Request(v, Purpose{Kind: KindBalanceInspect, Account: uuid.New(), Asset: "USD", Value: v})
	require.NoError(t, err)

	// Tampered value under a signature for the true value.
	_, err = client.Resolve(id, 9999, svc.SignResult(id, 500))
	assert.ErrorIs(t, err, ErrSignatureVerification)

	_, err = client.Resolve(id, 500, nil)
	assert.ErrorIs(t, err, ErrSignatureVerification)

	// A rejected callback leaves the purpose-context retained.
	assert.Equal(t, 1, client.PendingCount())
}

func TestResolveUnknownRequest(t *testing.T) {
	svc := sealed.NewPlain()
	client := NewClient(svc, zerolog.Nop())

	// Signed by the authority but never requested by this client.
	v, _ := svc.Seal(7)
	id, err := svc.RequestDecrypt(v)
	require.NoError(t, err)

	_, err = client.Resolve(id, 7, svc.SignResult(id, 7))
	assert.ErrorIs(t, err, ErrUnknownRequest)
}
