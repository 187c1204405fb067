package wallet

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/sha3"
)

var (
	// ErrErased is returned by operations on a wallet whose key was wiped
	ErrErased = errors.New("wallet key has been erased")

	// ErrInvalidKey is returned when key material cannot be parsed
	ErrInvalidKey = errors.New("invalid private key")
)

// addressSchemeSingleEd25519 is appended to the public key before hashing
const addressSchemeSingleEd25519 byte = 0x00

// Wallet holds one ed25519 keypair. The PKCS#8 buffer is the canonical key form.
// A wallet is safe for concurrent use.
type Wallet struct {
	mu      sync.RWMutex
	pkcs8   []byte
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	address string
	erased  bool
}

// Generate creates a wallet with a fresh random key
func Generate() (*Wallet, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keypair: %w", err)
	}
	return fromPrivateKey(priv)
}

// FromSeed creates a wallet from a 32-byte ed25519 seed
func FromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: seed must be %d bytes, got %d", ErrInvalidKey, ed25519.SeedSize, len(seed))
	}
	return fromPrivateKey(ed25519.NewKeyFromSeed(seed))
}

// FromPKCS8 creates a wallet from a PKCS#8 DER document. The buffer is kept verbatim.
func FromPKCS8(der []byte) (*Wallet, error) {
	priv, err := parsePKCS8(der)
	if err != nil {
		return nil, err
	}
	return newWallet(der, priv), nil
}

// FromPrivateKeyHex imports a hex encoded key. PKCS#8 DER, a 32-byte seed and a
// 64-byte ed25519 private key are accepted.
func FromPrivateKeyHex(value string) (*Wallet, error) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex: %v", ErrInvalidKey, err)
	}
	return fromRaw(raw)
}

// FromPrivateKeyBase64 imports a standard base64 encoded key in any accepted form
func FromPrivateKeyBase64(value string) (*Wallet, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64: %v", ErrInvalidKey, err)
	}
	return fromRaw(raw)
}

// Parse imports key material in hex or base64
func Parse(value string) (*Wallet, error) {
	if w, err := FromPrivateKeyHex(value); err == nil {
		return w, nil
	}
	if w, err := FromPrivateKeyBase64(value); err == nil {
		return w, nil
	}
	return nil, fmt.Errorf("%w: unable to parse key as hex or base64", ErrInvalidKey)
}

func fromRaw(raw []byte) (*Wallet, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return FromSeed(raw)
	case ed25519.PrivateKeySize:
		priv := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
		if !bytes.Equal(priv[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
			return nil, fmt.Errorf("%w: public half does not match seed", ErrInvalidKey)
		}
		return fromPrivateKey(priv)
	default:
		return FromPKCS8(raw)
	}
}

func fromPrivateKey(priv ed25519.PrivateKey) (*Wallet, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to encode PKCS#8 key: %w", err)
	}
	return newWallet(der, priv), nil
}

func newWallet(der []byte, priv ed25519.PrivateKey) *Wallet {
	buf := make([]byte, len(der))
	copy(buf, der)

	pub := priv.Public().(ed25519.PublicKey)
	return &Wallet{
		pkcs8:   buf,
		private: priv,
		public:  pub,
		address: DeriveAddress(pub),
	}
}

// v2 documents carry the public key after the seed; x509 only reads v1
var pkcs8V2Prefix = []byte{
	0x30, 0x53, 0x02, 0x01, 0x01, 0x30, 0x05, 0x06, 0x03, 0x2b, 0x65, 0x70,
	0x04, 0x22, 0x04, 0x20,
}

func parsePKCS8(der []byte) (ed25519.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err == nil {
		priv, ok := key.(ed25519.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("%w: PKCS#8 key is %T, not ed25519", ErrInvalidKey, key)
		}
		return priv, nil
	}

	const v2Len = 16 + ed25519.SeedSize + 5 + ed25519.PublicKeySize
	if len(der) == v2Len && bytes.HasPrefix(der, pkcs8V2Prefix) {
		seed := der[16 : 16+ed25519.SeedSize]
		priv := ed25519.NewKeyFromSeed(seed)
		embedded := der[len(der)-ed25519.PublicKeySize:]
		if !bytes.Equal(embedded, priv.Public().(ed25519.PublicKey)) {
			return nil, fmt.Errorf("%w: embedded public key does not match seed", ErrInvalidKey)
		}
		return priv, nil
	}

	return nil, fmt.Errorf("%w: invalid PKCS8 format: %v", ErrInvalidKey, err)
}

// DeriveAddress returns 0x + hex(SHA3-256(public key || 0x00))
func DeriveAddress(pub ed25519.PublicKey) string {
	h := sha3.New256()
	h.Write(pub)
	h.Write([]byte{addressSchemeSingleEd25519})
	return "0x" + hex.EncodeToString(h.Sum(nil))
}

// PublicKeyBytes returns a copy of the 32-byte public key
func (w *Wallet) PublicKeyBytes() []byte {
	out := make([]byte, len(w.public))
	copy(out, w.public)
	return out
}

// PublicKeyHex returns the lowercase hex public key without prefix
func (w *Wallet) PublicKeyHex() string {
	return hex.EncodeToString(w.public)
}

// Address returns the account address derived from the public key
func (w *Wallet) Address() string {
	return w.address
}

// Sign returns the 64-byte ed25519 signature of msg
func (w *Wallet) Sign(msg []byte) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.erased {
		return nil, ErrErased
	}
	return ed25519.Sign(w.private, msg), nil
}

// Verify checks a signature against the wallet public key
func (w *Wallet) Verify(msg, sig []byte) bool {
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(w.public, msg, sig)
}

// PrivateKeyHex exports the PKCS#8 buffer as hex
func (w *Wallet) PrivateKeyHex() (string, error) {
	der, err := w.ExportPKCS8()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(der), nil
}

// PrivateKeyBase64 exports the PKCS#8 buffer as standard base64
func (w *Wallet) PrivateKeyBase64() (string, error) {
	der, err := w.ExportPKCS8()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ExportPKCS8 returns a copy of the PKCS#8 buffer
func (w *Wallet) ExportPKCS8() ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.erased {
		return nil, ErrErased
	}
	out := make([]byte, len(w.pkcs8))
	copy(out, w.pkcs8)
	return out, nil
}

// Erase overwrites the key material with zeros. The wallet can still verify.
func (w *Wallet) Erase() {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.pkcs8 {
		w.pkcs8[i] = 0
	}
	for i := range w.private {
		w.private[i] = 0
	}
	w.erased = true
}

// Erased reports whether Erase has been called
func (w *Wallet) Erased() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.erased
}

// String renders the address only
func (w *Wallet) String() string {
	return fmt.Sprintf("Wallet{%s}", w.address)
}
