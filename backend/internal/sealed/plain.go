package sealed

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// PlainService implements Service with plaintext integers behind opaque
// handles. It exists for tests and for running the engine without a real
// homomorphic backend; the engine code is identical either way.
type PlainService struct {
	mu      sync.Mutex
	key     []byte
	next    uint64
	values  map[uint64]uint64
	bools   map[uint64]bool
	pending map[uuid.UUID]uint64
	zero    Value
}

// NewPlain creates a plaintext-backed value service with a random
// signing key for its oracle proofs.
func NewPlain() *PlainService {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic(err) // crypto/rand failure is not recoverable
	}
	s := &PlainService{
		key:     key,
		values:  make(map[uint64]uint64),
		bools:   make(map[uint64]bool),
		pending: make(map[uuid.UUID]uint64),
	}
	s.zero = s.mint(0)
	return s
}

func (s *PlainService) mint(x uint64) Value {
	s.next++
	s.values[s.next] = x
	return Value{ref: s.next}
}

func (s *PlainService) mintBool(b bool) Bool {
	s.next++
	s.bools[s.next] = b
	return Bool{ref: s.next}
}

func (s *PlainService) get(v Value) (uint64, error) {
	x, ok := s.values[v.ref]
	if !ok {
		return 0, ErrUnknownValue
	}
	return x, nil
}

func (s *PlainService) Add(a, b Value) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, err := s.get(a)
	if err != nil {
		return Value{}, err
	}
	y, err := s.get(b)
	if err != nil {
		return Value{}, err
	}
	return s.mint(x + y), nil
}

// Sub saturates at zero: sealed integers are non-negative, and callers
// only subtract after a Ge check has passed.
func (s *PlainService) Sub(a, b Value) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, err := s.get(a)
	if err != nil {
		return Value{}, err
	}
	y, err := s.get(b)
	if err != nil {
		return Value{}, err
	}
	if y > x {
		return s.mint(0), nil
	}
	return s.mint(x - y), nil
}

func (s *PlainService) Ge(a, b Value) (Bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, err := s.get(a)
	if err != nil {
		return Bool{}, err
	}
	y, err := s.get(b)
	if err != nil {
		return Bool{}, err
	}
	return s.mintBool(x >= y), nil
}

func (s *PlainService) Eq(a, b Value) (Bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, err := s.get(a)
	if err != nil {
		return Bool{}, err
	}
	y, err := s.get(b)
	if err != nil {
		return Bool{}, err
	}
	return s.mintBool(x == y), nil
}

func (s *PlainService) Decide(b Bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.bools[b.ref]
	if !ok {
		return false, ErrUnknownValue
	}
	return v, nil
}

func (s *PlainService) Seal(x uint64) (Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mint(x), nil
}

func (s *PlainService) Zero() Value { return s.zero }

// Import accepts the ciphertext/proof pairs produced by ClientSeal.
func (s *PlainService) Import(ciphertext, proof []byte) (Value, error) {
	if len(ciphertext) != 8 {
		return Value{}, ErrProof
	}
	want := clientProof(ciphertext)
	if !hmac.Equal(proof, want) {
		return Value{}, ErrProof
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mint(binary.BigEndian.Uint64(ciphertext)), nil
}

func (s *PlainService) RequestDecrypt(v Value) (uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, err := s.get(v)
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	s.pending[id] = x
	return id, nil
}

func (s *PlainService) VerifySignatures(requestID uuid.UUID, result uint64, proofs [][]byte) bool {
	if len(proofs) == 0 {
		return false
	}
	want := s.signature(requestID, result)
	for _, p := range proofs {
		if !hmac.Equal(p, want) {
			return false
		}
	}
	return true
}

func (s *PlainService) signature(requestID uuid.UUID, result uint64) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write(requestID[:])
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], result)
	mac.Write(buf[:])
	return mac.Sum(nil)
}

// DecryptRequest is a pending reveal as seen by the oracle authority.
type DecryptRequest struct {
	ID    uuid.UUID
	Plain uint64
}

// PendingDecrypts lists outstanding decrypt requests. This is the oracle
// authority's view; tests and the dev loop use it to answer callbacks.
func (s *PlainService) PendingDecrypts() []DecryptRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DecryptRequest, 0, len(s.pending))
	for id, x := range s.pending {
		out = append(out, DecryptRequest{ID: id, Plain: x})
	}
	return out
}

// SignResult produces a valid proof set for a decrypt answer, playing the
// role of the oracle authority's threshold signatures.
func (s *PlainService) SignResult(requestID uuid.UUID, result uint64) [][]byte {
	return [][]byte{s.signature(requestID, result)}
}

// Plaintext exposes a value's plaintext for test assertions only.
func (s *PlainService) Plaintext(v Value) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, ok := s.values[v.ref]
	return x, ok
}

// ClientSeal builds the ciphertext and proof a client would submit for x.
func ClientSeal(x uint64) (ciphertext, proof []byte) {
	ciphertext = make([]byte, 8)
	binary.BigEndian.PutUint64(ciphertext, x)
	return ciphertext, clientProof(ciphertext)
}

func clientProof(ciphertext []byte) []byte {
	h := sha256.New()
	h.Write([]byte("zkpok"))
	h.Write(ciphertext)
	return h.Sum(nil)
}
