package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// PassphraseEnv overrides the generated passphrase file
const PassphraseEnv = "XHS_PASSPHRASE"

const (
	vaultVersion    = 2
	vaultSaltSize   = 32
	vaultKeySize    = 32
	vaultIterations = 100000
	passphraseFile  = ".passphrase"
)

// ErrWrongPassphrase means the vault was sealed with another passphrase
var ErrWrongPassphrase = errors.New("credential vault cannot be opened with this passphrase")

// EncryptedFileStore keeps sessions in a JSON vault where every cookie
// set is sealed separately with AES-GCM. The session name is bound to its
// entry as additional data, so entries cannot be swapped between names.
// The key is PBKDF2 over XHS_PASSPHRASE or a generated passphrase file.
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// vault is the on-disk layout
type vault struct {
	Version    int               `json:"version"`
	Salt       string            `json:"salt"`
	Iterations int               `json:"iterations"`
	Check      string            `json:"check"`
	Sessions   map[string]string `json:"sessions"`
	Modified   time.Time         `json:"modified"`
}

// NewEncryptedFileStore opens the vault at path, creating its directory
// and passphrase file as needed. The vault file itself is written on the
// first Store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	passphrase, err := loadPassphrase(filepath.Join(filepath.Dir(path), passphraseFile))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}
	return &EncryptedFileStore{path: path, passphrase: passphrase}, nil
}

func (e *EncryptedFileStore) Store(account *Account) error {
	if account == nil || account.Name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, key, err := e.open(true)
	if err != nil {
		return err
	}
	plain, err := json.Marshal(account)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	sealed, err := seal(key, plain, []byte(account.Name))
	if err != nil {
		return err
	}
	v.Sessions[account.Name] = sealed
	return e.write(v)
}

func (e *EncryptedFileStore) Retrieve(name string) (*Account, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	v, key, err := e.open(false)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrCredentialsNotFound
	}
	sealed, ok := v.Sessions[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return unsealAccount(key, name, sealed)
}

// List returns every session in the vault ordered by name
func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, key, err := e.open(false)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return []*Account{}, nil
	}

	names := make([]string, 0, len(v.Sessions))
	for name := range v.Sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	accounts := make([]*Account, 0, len(names))
	for _, name := range names {
		account, err := unsealAccount(key, name, v.Sessions[name])
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

// Delete removes a session; the vault file goes with the last one
func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	v, _, err := e.open(false)
	if err != nil {
		return err
	}
	if v == nil {
		return ErrCredentialsNotFound
	}
	if _, ok := v.Sessions[name]; !ok {
		return ErrCredentialsNotFound
	}

	delete(v.Sessions, name)
	if len(v.Sessions) == 0 {
		return os.Remove(e.path)
	}
	return e.write(v)
}

func (e *EncryptedFileStore) Exists(name string) bool {
	account, err := e.Retrieve(name)
	return err == nil && account != nil
}

// open reads the vault and derives its key. A missing file yields a nil
// vault, or a fresh one when create is set.
func (e *EncryptedFileStore) open(create bool) (*vault, []byte, error) {
	content, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		if !create {
			return nil, nil, nil
		}
		return e.fresh()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read credential vault: %w", err)
	}

	var v vault
	if err := json.Unmarshal(content, &v); err != nil {
		return nil, nil, fmt.Errorf("failed to parse credential vault: %w", err)
	}
	if v.Version != vaultVersion {
		return nil, nil, fmt.Errorf("unsupported credential vault version %d", v.Version)
	}
	salt, err := base64.StdEncoding.DecodeString(v.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	if v.Iterations <= 0 {
		v.Iterations = vaultIterations
	}
	key := pbkdf2.Key([]byte(e.passphrase), salt, v.Iterations, vaultKeySize, sha256.New)
	if _, err := unseal(key, v.Check, []byte(v.Salt)); err != nil {
		return nil, nil, ErrWrongPassphrase
	}
	if v.Sessions == nil {
		v.Sessions = make(map[string]string)
	}
	return &v, key, nil
}

func (e *EncryptedFileStore) fresh() (*vault, []byte, error) {
	salt := make([]byte, vaultSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	v := &vault{
		Version:    vaultVersion,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Iterations: vaultIterations,
		Sessions:   make(map[string]string),
	}
	key := pbkdf2.Key([]byte(e.passphrase), salt, v.Iterations, vaultKeySize, sha256.New)
	check, err := seal(key, []byte("xhs"), []byte(v.Salt))
	if err != nil {
		return nil, nil, err
	}
	v.Check = check
	return v, key, nil
}

// write replaces the vault file atomically
func (e *EncryptedFileStore) write(v *vault) error {
	v.Modified = time.Now()
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credential vault: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write credential vault: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace credential vault: %w", err)
	}
	return nil
}

// loadPassphrase prefers XHS_PASSPHRASE, then the passphrase file, and
// generates the file on first use.
func loadPassphrase(path string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func unsealAccount(key []byte, name, sealed string) (*Account, error) {
	plain, err := unseal(key, sealed, []byte(name))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt session %q: %w", name, err)
	}
	var account Account
	if err := json.Unmarshal(plain, &account); err != nil {
		return nil, fmt.Errorf("failed to parse session %q: %w", name, err)
	}
	return &account, nil
}

// seal encrypts plaintext with AES-GCM and returns nonce||ciphertext as base64
func seal(key, plaintext, aad []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(gcm.Seal(nonce, nonce, plaintext, aad)), nil
}

func unseal(key []byte, sealed string, aad []byte) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(raw) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
