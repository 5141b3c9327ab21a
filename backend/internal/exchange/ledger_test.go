package exchange

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/darkpool/backend/internal/models"
	"github.com/user/darkpool/backend/internal/sealed"
)

func ledgerFixture(t *testing.T) (*sealed.PlainService, *Ledger, models.BalanceKey) {
	t.Helper()
	svc := sealed.NewPlain()
	key := models.BalanceKey{Account: uuid.New(), Asset: "USD"}
	return svc, NewLedger(svc), key
}

func plaintext(t *testing.T, svc *sealed.PlainService, v sealed.Value) uint64 {
	t.Helper()
	x, ok := svc.Plaintext(v)
	require.True(t, ok)
	return x
}

func mustSeal(t *testing.T, svc *sealed.PlainService, x uint64) sealed.Value {
	t.Helper()
	v, err := svc.Seal(x)
	require.NoError(t, err)
	return v
}

func TestLedgerDepositCreatesEntry(t *testing.T) {
	svc, ledger, key := ledgerFixture(t)

	assert.Equal(t, uint64(0), plaintext(t, svc, ledger.Balance(key)))

	require.NoError(t, ledger.Deposit(key, mustSeal(t, svc, 100)))
	assert.Equal(t, uint64(100), plaintext(t, svc, ledger.Balance(key)))

	require.NoError(t, ledger.Deposit(key, mustSeal(t, svc, 50)))
	assert.Equal(t, uint64(150), plaintext(t, svc, ledger.Balance(key)))
}

func TestLedgerReserveConservation(t *testing.T) {
	svc, ledger, key := ledgerFixture(t)
	require.NoError(t, ledger.Deposit(key, mustSeal(t, svc, 100)))

	require.NoError(t, ledger.Reserve(key, mustSeal(t, svc, 60)))
	assert.Equal(t, uint64(40), plaintext(t, svc, ledger.Balance(key)))

	require.NoError(t, ledger.Release(key, mustSeal(t, svc, 60)))
	assert.Equal(t, uint64(100), plaintext(t, svc, ledger.Balance(key)))
}

func TestLedgerReserveInsufficient(t *testing.T) {
	svc, ledger, key := ledgerFixture(t)
	require.NoError(t, ledger.Deposit(key, mustSeal(t, svc, 10)))

	err := ledger.Reserve(key, mustSeal(t, svc, 11))
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	// Failed check leaves the balance untouched.
	assert.Equal(t, uint64(10), plaintext(t, svc, ledger.Balance(key)))

	// An exact cover succeeds.
	require.NoError(t, ledger.Reserve(key, mustSeal(t, svc, 10)))
	assert.Equal(t, uint64(0), plaintext(t, svc, ledger.Balance(key)))
}

func TestLedgerDebitMissingEntry(t *testing.T) {
	svc, ledger, key := ledgerFixture(t)
	err := ledger.Debit(key, mustSeal(t, svc, 1))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Debiting a sealed zero from a missing entry is allowed.
	require.NoError(t, ledger.Debit(key, mustSeal(t, svc, 0)))
}
