package wallet

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/opendlt/aptos-toolkit/internal/crypto/keystore"
)

// Source describes where wallet key material comes from
type Source struct {
	Type        string `yaml:"type"` // "file" | "env" | "hex" | "keystore"
	Key         string `yaml:"key"`  // path, env var name, key material or keystore alias
	KeystoreDir string `yaml:"keystoreDir"`
	Passphrase  string `yaml:"-"`
}

// FromConfig loads a wallet from a configured source
func FromConfig(src *Source) (*Wallet, error) {
	if src == nil || src.Type == "" {
		return nil, fmt.Errorf("no wallet source provided")
	}

	switch src.Type {
	case "file":
		if src.Key == "" {
			return nil, fmt.Errorf("file wallet requires key path")
		}
		return LoadFromFile(src.Key)

	case "env":
		if src.Key == "" {
			return nil, fmt.Errorf("env wallet requires environment variable name")
		}
		value := os.Getenv(src.Key)
		if value == "" {
			return nil, fmt.Errorf("environment variable %s is not set or empty", src.Key)
		}
		w, err := Parse(value)
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key from %s: %w", src.Key, err)
		}
		return w, nil

	case "hex":
		return FromPrivateKeyHex(src.Key)

	case "keystore":
		if src.KeystoreDir == "" {
			return nil, fmt.Errorf("keystore wallet requires keystore directory")
		}
		ks, err := keystore.NewWithPassphrase(src.KeystoreDir, src.Passphrase)
		if err != nil {
			return nil, err
		}
		return FromKeystore(ks, src.Key)

	default:
		return nil, fmt.Errorf("unsupported wallet source type: %s", src.Type)
	}
}

// LoadFromFile reads a hex or base64 key from a file
func LoadFromFile(path string) (*Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file %s: %w", path, err)
	}

	w, err := Parse(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key from %s: %w", path, err)
	}
	return w, nil
}

// SaveToFile writes the PKCS#8 key as hex with owner-only permissions
func (w *Wallet) SaveToFile(path string) error {
	der, err := w.ExportPKCS8()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(der)), 0600); err != nil {
		return fmt.Errorf("failed to write key file %s: %w", path, err)
	}
	return nil
}

// FromKeystore loads the wallet stored under alias
func FromKeystore(ks *keystore.Keystore, alias string) (*Wallet, error) {
	if ks == nil {
		return nil, fmt.Errorf("keystore is nil")
	}
	if alias == "" {
		return nil, fmt.Errorf("key alias is empty")
	}

	der, err := ks.Get(alias)
	if err != nil {
		return nil, fmt.Errorf("failed to get key for alias '%s': %w", alias, err)
	}
	return FromPKCS8(der)
}

// SaveToKeystore stores the wallet key under alias
func (w *Wallet) SaveToKeystore(ks *keystore.Keystore, alias string) error {
	if ks == nil {
		return fmt.Errorf("keystore is nil")
	}
	der, err := w.ExportPKCS8()
	if err != nil {
		return err
	}
	return ks.Save(alias, w.Address(), "0x"+w.PublicKeyHex(), der)
}
