// Package sealed models encrypted integers as opaque handles. The engine
// can combine and compare sealed values through a Service but can never
// read one directly; plaintexts leave the service only through the
// decrypt-request protocol or a boolean-only Decide.
package sealed

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrUnknownValue is returned for a handle the service did not mint.
	ErrUnknownValue = errors.New("sealed: unknown value handle")
	// ErrProof is returned when a client-supplied ciphertext fails its
	// accompanying zero-knowledge proof.
	ErrProof = errors.New("sealed: proof does not verify")
)

// Value is an opaque handle to an encrypted non-negative integer held by
// the value service. The zero Value is invalid.
type Value struct {
	ref uint64
}

// Valid reports whether the handle was minted by a service.
func (v Value) Valid() bool { return v.ref != 0 }

// Bool is an opaque handle to an encrypted boolean, produced by
// comparisons. Its plaintext is only reachable through Service.Decide.
type Bool struct {
	ref uint64
}

// Service is the opaque value capability. Implementations hold the
// ciphertexts; callers only ever see handles.
//
// Decide reveals the plaintext of an encrypted boolean. It is the one
// synchronous reveal in the interface and exists so invariant checks
// ("is balance >= amount") can be enforced without exposing operands.
type Service interface {
	// Add returns a handle to a+b.
	Add(a, b Value) (Value, error)
	// Sub returns a handle to a-b. Callers must have established a >= b.
	Sub(a, b Value) (Value, error)
	// Ge returns an encrypted a >= b.
	Ge(a, b Value) (Bool, error)
	// Eq returns an encrypted a == b.
	Eq(a, b Value) (Bool, error)
	// Decide reveals an encrypted boolean.
	Decide(b Bool) (bool, error)
	// Seal trivially encrypts a public scalar.
	Seal(x uint64) (Value, error)
	// Zero returns a shared handle to an encryption of zero.
	Zero() Value
	// Import validates a client-supplied ciphertext against its proof and
	// returns a handle. Fails with ErrProof if the proof does not verify.
	Import(ciphertext, proof []byte) (Value, error)
	// RequestDecrypt starts an asynchronous reveal of v and returns the
	// request id the oracle authority will answer under.
	RequestDecrypt(v Value) (uuid.UUID, error)
	// VerifySignatures checks that proofs authenticate result as the
	// answer to the given decrypt request.
	VerifySignatures(requestID uuid.UUID, result uint64, proofs [][]byte) bool
}
