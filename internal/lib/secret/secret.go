// Package secret шифрует короткие секреты (refresh-токены Discord) перед
// записью в базу.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	info      = "rankshop refresh token v1"
)

var (
	// ErrEmptyKey возвращается, если ключ шифрования не задан.
	ErrEmptyKey = errors.New("encryption key is empty")
	// ErrDecrypt возвращается для повреждённого или чужого шифротекста.
	ErrDecrypt = errors.New("cannot decrypt sealed value")
)

// Sealer шифрует значения ключом, выведенным из пароля конфигурации.
type Sealer struct {
	key [keySize]byte
}

// NewSealer выводит ключ secretbox из строки конфигурации через HKDF-SHA256.
func NewSealer(passphrase string) (*Sealer, error) {
	const op = "secret.NewSealer"
	if passphrase == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyKey)
	}
	s := &Sealer{}
	r := hkdf.New(sha256.New, []byte(passphrase), nil, []byte(info))
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

// Seal шифрует plaintext. Результат: nonce, за которым следует шифротекст.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	const op = "secret.Seal"
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open расшифровывает значение, полученное от Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	const op = "secret.Open"
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("%s: %w", op, ErrDecrypt)
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, ErrDecrypt)
	}
	return plain, nil
}
