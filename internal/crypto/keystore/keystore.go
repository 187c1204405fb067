package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// KeyEntry is a named wallet key in the keystore index
type KeyEntry struct {
	Alias        string    `json:"alias"`
	Address      string    `json:"address"`
	PubKeyHex    string    `json:"pubKeyHex"`
	CreatedAt    time.Time `json:"createdAt"`
	EncryptedKey string    `json:"encryptedKey,omitempty"`
}

// Keystore keeps PKCS#8 encoded wallet keys encrypted on disk
type Keystore struct {
	mu        sync.RWMutex
	path      string
	indexPath string
	entries   map[string]*KeyEntry
	secret    []byte
}

// New opens or creates a keystore protected by a secret derived from the OS user
func New(path string) (*Keystore, error) {
	return NewWithPassphrase(path, "")
}

// NewWithPassphrase opens or creates a keystore protected by a passphrase.
// An empty passphrase falls back to the OS user secret.
func NewWithPassphrase(path, passphrase string) (*Keystore, error) {
	if path == "" {
		return nil, fmt.Errorf("keystore path cannot be empty")
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	secret := osUserSecret()
	if passphrase != "" {
		sum := sha256.Sum256([]byte(passphrase))
		secret = sum[:]
	}

	ks := &Keystore{
		path:      path,
		indexPath: filepath.Join(path, "index.json"),
		entries:   make(map[string]*KeyEntry),
		secret:    secret,
	}

	if err := ks.loadIndex(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load keystore index: %w", err)
	}

	return ks, nil
}

// osUserSecret derives a key from OS-specific user information
func osUserSecret() []byte {
	var secret string

	switch runtime.GOOS {
	case "windows":
		secret = os.Getenv("USERNAME") + os.Getenv("COMPUTERNAME")
	default:
		secret = os.Getenv("USER") + os.Getenv("HOSTNAME")
	}
	if secret == "" {
		secret = "aptos-toolkit-keystore-default"
	}

	hash := sha256.Sum256([]byte(secret))
	return hash[:]
}

func (ks *Keystore) loadIndex() error {
	data, err := os.ReadFile(ks.indexPath)
	if err != nil {
		return err
	}

	var entries []*KeyEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("failed to unmarshal index: %w", err)
	}

	ks.entries = make(map[string]*KeyEntry, len(entries))
	for _, entry := range entries {
		ks.entries[entry.Alias] = entry
	}
	return nil
}

// saveIndex writes the index; callers hold the write lock
func (ks *Keystore) saveIndex() error {
	entries := make([]*KeyEntry, 0, len(ks.entries))
	for _, entry := range ks.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Alias < entries[j].Alias })

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal index: %w", err)
	}

	tmp := ks.indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, ks.indexPath); err != nil {
		return fmt.Errorf("failed to replace index: %w", err)
	}
	return nil
}

func (ks *Keystore) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(ks.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func (ks *Keystore) encrypt(key []byte) (string, error) {
	gcm, err := ks.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, key, nil)
	return "aes:" + hex.EncodeToString(ciphertext), nil
}

func (ks *Keystore) decrypt(encrypted string) ([]byte, error) {
	data, ok := strings.CutPrefix(encrypted, "aes:")
	if !ok {
		return nil, fmt.Errorf("unknown encryption format")
	}

	ciphertext, err := hex.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	gcm, err := ks.gcm()
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt key: %w", err)
	}
	return plaintext, nil
}

// Save stores an encoded private key under alias
func (ks *Keystore) Save(alias, address, pubKeyHex string, key []byte) error {
	if alias == "" {
		return fmt.Errorf("alias cannot be empty")
	}
	if len(key) == 0 {
		return fmt.Errorf("key cannot be empty")
	}

	ks.mu.Lock()
	defer ks.mu.Unlock()

	if _, exists := ks.entries[alias]; exists {
		return fmt.Errorf("key with alias '%s' already exists", alias)
	}

	encrypted, err := ks.encrypt(key)
	if err != nil {
		return fmt.Errorf("failed to encrypt private key: %w", err)
	}

	ks.entries[alias] = &KeyEntry{
		Alias:        alias,
		Address:      address,
		PubKeyHex:    pubKeyHex,
		CreatedAt:    time.Now().UTC(),
		EncryptedKey: encrypted,
	}

	if err := ks.saveIndex(); err != nil {
		delete(ks.entries, alias)
		return fmt.Errorf("failed to save keystore index: %w", err)
	}
	return nil
}

// Get returns the decrypted key stored under alias
func (ks *Keystore) Get(alias string) ([]byte, error) {
	ks.mu.RLock()
	entry, exists := ks.entries[alias]
	ks.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("key with alias '%s' not found", alias)
	}
	return ks.decrypt(entry.EncryptedKey)
}

// Entry returns the public metadata of alias
func (ks *Keystore) Entry(alias string) (*KeyEntry, bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	entry, exists := ks.entries[alias]
	if !exists {
		return nil, false
	}
	cp := *entry
	cp.EncryptedKey = ""
	return &cp, true
}

// List returns all entries sorted by alias, without key material
func (ks *Keystore) List() []*KeyEntry {
	ks.mu.RLock()
	defer ks.mu.RUnlock()

	entries := make([]*KeyEntry, 0, len(ks.entries))
	for _, entry := range ks.entries {
		cp := *entry
		cp.EncryptedKey = ""
		entries = append(entries, &cp)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Alias < entries[j].Alias })
	return entries
}

// Delete removes a key from the keystore
func (ks *Keystore) Delete(alias string) error {
	ks.mu.Lock()
	defer ks.mu.Unlock()

	entry, exists := ks.entries[alias]
	if !exists {
		return fmt.Errorf("key with alias '%s' not found", alias)
	}

	delete(ks.entries, alias)
	if err := ks.saveIndex(); err != nil {
		ks.entries[alias] = entry
		return fmt.Errorf("failed to save keystore index: %w", err)
	}
	return nil
}

// HasKey checks if a key with the given alias exists
func (ks *Keystore) HasKey(alias string) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, exists := ks.entries[alias]
	return exists
}

// Path returns the keystore directory path
func (ks *Keystore) Path() string {
	return ks.path
}
