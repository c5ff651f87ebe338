// Package session holds the per-domain cryptographic session state a
// façade establishes with a handshake and mutates on every command send:
// the derived AEAD/HMAC keys, the anti-replay counter, the epoch the
// vehicle handed back, and the clock offset needed to compute
// vehicle-relative expiry timestamps. State lives here instead of in the
// façade so the request multiplexer's post-handler can read session keys
// without reaching back into façade internals.
package session

import (
	"sync"

	"github.com/leonzdev/tsla-ble-dash-expo/internal/authentication"
	"github.com/leonzdev/tsla-ble-dash-expo/pkg/protocol"
)

// State is one domain's session: established by a handshake, invalidated by
// disconnect or any authentication failure, never persisted across either.
type State struct {
	mu sync.Mutex

	domain           protocol.Domain
	crypto           authentication.Session
	epoch            []byte
	vehiclePublicKey []byte
	clientPublicKey  []byte
	timeZeroMs       int64
	counter          uint32
}

// New records a freshly completed handshake: crypto holds the derived
// AES/HMAC keys, epoch and vehiclePublicKey come from the vehicle's
// SessionInfo, clientPublicKey is this side's ECDH public key, and
// clockTimeSeconds/nowMs let VehicleTimeSeconds translate a later wall-clock
// reading back into the vehicle's own clock.
func New(domain protocol.Domain, crypto authentication.Session, epoch, vehiclePublicKey, clientPublicKey []byte, clockTimeSeconds uint32, nowMs int64) *State {
	return &State{
		domain:           domain,
		crypto:           crypto,
		epoch:            append([]byte(nil), epoch...),
		vehiclePublicKey: append([]byte(nil), vehiclePublicKey...),
		clientPublicKey:  append([]byte(nil), clientPublicKey...),
		timeZeroMs:       nowMs - int64(clockTimeSeconds)*1000,
	}
}

func (s *State) Domain() protocol.Domain { return s.domain }

func (s *State) Crypto() authentication.Session { return s.crypto }

func (s *State) Epoch() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.epoch...)
}

func (s *State) VehiclePublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.vehiclePublicKey...)
}

func (s *State) ClientPublicKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.clientPublicKey...)
}

// NextCounter increments and returns the outbound command counter. Counters
// are strictly increasing for the lifetime of a session; a cancelled
// request whose ciphertext already reached the wire still consumes the
// value it was assigned.
func (s *State) NextCounter() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counter++
	return s.counter
}

// Counter returns the most recently issued counter value, without
// incrementing it. The response AAD is built from the counter the vehicle's
// own response carries (signatureData.AES_GCM_ResponseData.counter), not
// this value; Counter exists for callers that need to observe session
// progress directly.
func (s *State) Counter() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// VehicleTimeSeconds converts a wall-clock reading (milliseconds since the
// Unix epoch) into the vehicle's own clock, established at handshake time.
func (s *State) VehicleTimeSeconds(nowMs int64) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := nowMs - s.timeZeroMs
	if delta < 0 {
		return 0
	}
	return uint32(delta / 1000)
}

// Manager tracks at most one State per domain, the unit a façade
// invalidates on disconnect or authentication failure.
type Manager struct {
	mu     sync.Mutex
	states map[protocol.Domain]*State
}

// NewManager returns an empty session manager.
func NewManager() *Manager {
	return &Manager{states: make(map[protocol.Domain]*State)}
}

// Get returns the established state for domain, if any.
func (m *Manager) Get(domain protocol.Domain) (*State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[domain]
	return s, ok
}

// Set records a freshly established state for domain, replacing any prior
// one.
func (m *Manager) Set(domain protocol.Domain, s *State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[domain] = s
}

// Invalidate drops domain's state, forcing the next use to re-handshake.
func (m *Manager) Invalidate(domain protocol.Domain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, domain)
}

// InvalidateAll drops every domain's state, used on transport disconnect.
func (m *Manager) InvalidateAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[protocol.Domain]*State)
}
