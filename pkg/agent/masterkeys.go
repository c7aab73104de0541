package agent

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/forgemesh/nodeagent/pkg/security"
	"github.com/forgemesh/nodeagent/pkg/types"
)

// MasterKeyManager is a SecretManager that installs rotating master keys
// with latest-wins semantics: the most recently installed key is always
// the active one, matching the containment subsystem's own
// containerTokenSecretManager / nmTokenSecretManager collaborators.
//
// Its Seal/Open pair reuses the package's AES-256-GCM construction so
// tokens minted under the active key use the same primitive the rest of
// this codebase uses for secret material at rest.
type MasterKeyManager struct {
	mu  sync.RWMutex
	key types.SecurityKey
}

// NewMasterKeyManager returns a manager with no key installed; Seal/Open
// fail until SetMasterKey is called.
func NewMasterKeyManager() *MasterKeyManager {
	return &MasterKeyManager{}
}

// SetMasterKey installs key as the active key, unconditionally. A nil or
// zero-value key from a response means "no new key this round" and must
// not be passed here; callers are expected to filter that before calling.
func (m *MasterKeyManager) SetMasterKey(key types.SecurityKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
}

// Active returns the currently installed key and whether one has ever
// been installed.
func (m *MasterKeyManager) Active() (types.SecurityKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.key, len(m.key.Bytes) > 0
}

// Seal encrypts plaintext under the active key using AES-256-GCM, with the
// nonce prepended to the returned ciphertext.
func (m *MasterKeyManager) Seal(plaintext []byte) ([]byte, error) {
	key, ok := m.Active()
	if !ok {
		return nil, fmt.Errorf("no master key installed")
	}
	return security.SealWithKey(deriveAESKey(key.Bytes), plaintext)
}

// Open decrypts data sealed by Seal under the active key.
func (m *MasterKeyManager) Open(ciphertext []byte) ([]byte, error) {
	key, ok := m.Active()
	if !ok {
		return nil, fmt.Errorf("no master key installed")
	}
	return security.OpenWithKey(deriveAESKey(key.Bytes), ciphertext)
}

// deriveAESKey normalizes raw key bytes from the controller to the 32
// bytes AES-256 requires.
func deriveAESKey(raw []byte) []byte {
	if len(raw) == 32 {
		return raw
	}
	key := make([]byte, 32)
	copy(key, raw)
	return key
}

// NewSecurityKeyID returns a fresh opaque key identifier, used by test
// doubles and the containment subsystem's own key-issuance path; the
// controller is the source of truth for key IDs in production.
func NewSecurityKeyID() string {
	return uuid.NewString()
}

var _ SecretManager = (*MasterKeyManager)(nil)
