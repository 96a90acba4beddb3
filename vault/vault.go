// Package vault provides AES-256-GCM encryption for per-document wallet
// secrets.
//
// The encryption key is derived from the process-wide master key with
// SHA-256, producing a 32-byte key for AES-256. A random nonce is
// generated per seal and prepended to the ciphertext, so the blob is
// self-contained. Secrets are decrypted on demand and never cached in
// plaintext.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
)

// WalletKey is one chain keypair held for a document.
type WalletKey struct {
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
}

// Secrets is the plaintext secret bundle of one document. The EVM wallet
// is always present after setup; the Stacks wallet is optional.
type Secrets struct {
	EVM    WalletKey  `json:"chain_a"`
	Stacks *WalletKey `json:"chain_b,omitempty"`
}

// Vault seals and opens secret bundles with the master key.
type Vault struct {
	key [32]byte
}

// New derives the vault key from the master key.
func New(masterKey string) (*Vault, error) {
	if masterKey == "" {
		return nil, errors.New("master key is required")
	}
	return &Vault{key: sha256.Sum256([]byte(masterKey))}, nil
}

// Seal encrypts a secret bundle into a self-contained blob.
func (v *Vault) Seal(secrets *Secrets) ([]byte, error) {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal secrets: %w", err)
	}

	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, err
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aesGCM.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aesGCM.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal, verifying integrity.
func (v *Vault) Open(blob []byte) (*Secrets, error) {
	block, err := aes.NewCipher(v.key[:])
	if err != nil {
		return nil, err
	}
	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonceSize := aesGCM.NonceSize()
	if len(blob) < nonceSize {
		return nil, errors.New("ciphertext too short")
	}
	nonce, ct := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := aesGCM.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt secrets: %w", err)
	}

	secrets := &Secrets{}
	if err := json.Unmarshal(plaintext, secrets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal secrets: %w", err)
	}
	return secrets, nil
}
