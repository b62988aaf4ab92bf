package localstore

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/edumall/edumall/pkg/identitysdk"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Sealed values start with a format byte.
const (
	formatPlain  byte = 0
	formatSealed byte = 1
)

var hkdfInfo = []byte("edumall local token vault v1")

var ErrVaultLocked = errors.New("localstore: token vault is sealed with a different key")

type vault struct {
	aead cipher.AEAD
}

func newVault(secret []byte) (*vault, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, hkdfInfo), key); err != nil {
		return nil, fmt.Errorf("localstore: derive vault key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("localstore: init vault cipher: %w", err)
	}
	return &vault{aead: aead}, nil
}

func (v *vault) seal(plain, ad []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize(), v.aead.NonceSize()+len(plain)+v.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := append([]byte{formatSealed}, v.aead.Seal(nonce, nonce, plain, ad)...)
	return out, nil
}

func (v *vault) open(sealed, ad []byte) ([]byte, error) {
	ns := v.aead.NonceSize()
	if len(sealed) < ns {
		return nil, ErrVaultLocked
	}
	plain, err := v.aead.Open(nil, sealed[:ns], sealed[ns:], ad)
	if err != nil {
		return nil, ErrVaultLocked
	}
	return plain, nil
}

// LoadTokens implements identitysdk.TokenStore.
func (s *Store) LoadTokens(ctx context.Context) (identitysdk.Tokens, error) {
	raw, err := s.Get(ctx, KeyTokens)
	if errors.Is(err, ErrNotFound) || len(raw) == 0 {
		return identitysdk.Tokens{}, nil
	}
	if err != nil {
		return identitysdk.Tokens{}, err
	}

	body := raw[1:]
	switch raw[0] {
	case formatPlain:
	case formatSealed:
		if s.vault == nil {
			return identitysdk.Tokens{}, ErrVaultLocked
		}
		if body, err = s.vault.open(body, []byte(KeyTokens)); err != nil {
			return identitysdk.Tokens{}, err
		}
	default:
		return identitysdk.Tokens{}, fmt.Errorf("localstore: unknown token format %d", raw[0])
	}

	var t identitysdk.Tokens
	if err := json.Unmarshal(body, &t); err != nil {
		return identitysdk.Tokens{}, fmt.Errorf("localstore: decode tokens: %w", err)
	}
	return t, nil
}

// SaveTokens implements identitysdk.TokenStore.
func (s *Store) SaveTokens(ctx context.Context, t identitysdk.Tokens) error {
	plain, err := json.Marshal(t)
	if err != nil {
		return err
	}

	var raw []byte
	if s.vault != nil {
		if raw, err = s.vault.seal(plain, []byte(KeyTokens)); err != nil {
			return fmt.Errorf("localstore: seal tokens: %w", err)
		}
	} else {
		raw = append([]byte{formatPlain}, plain...)
	}
	return s.Put(ctx, KeyTokens, raw)
}

// ClearTokens implements identitysdk.TokenStore.
func (s *Store) ClearTokens(ctx context.Context) error {
	return s.Delete(ctx, KeyTokens)
}

var _ identitysdk.TokenStore = (*Store)(nil)
