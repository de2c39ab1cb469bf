// Package codec turns share ids into opaque, URL-safe tokens and back.
package codec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

const minTokenBytes = 2 * aes.BlockSize

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrInvalidKey   = errors.New("key must be 16, 24 or 32 bytes")
)

func validateKey(key []byte) error {
	switch len(key) {
	case 16, 24, 32:
		return nil
	default:
		return ErrInvalidKey
	}
}

// Encrypt seals id under key with a fresh IV. Two calls with the same id
// produce different tokens.
func Encrypt(id int64, key []byte) (string, error) {
	plain := make([]byte, 8)
	binary.BigEndian.PutUint64(plain, uint64(id))
	return encryptRaw(plain, key)
}

func encryptRaw(plain []byte, key []byte) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad(append([]byte(nil), plain...), aes.BlockSize)

	out := make([]byte, aes.BlockSize+len(padded))
	iv := out[:aes.BlockSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.URLEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. Any malformed or foreign token yields
// ErrInvalidToken.
func Decrypt(token string, key []byte) (int64, error) {
	if err := validateKey(key); err != nil {
		return 0, err
	}
	if token == "" {
		return 0, ErrInvalidToken
	}
	data, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return 0, ErrInvalidToken
	}
	if len(data) < minTokenBytes || len(data)%aes.BlockSize != 0 {
		return 0, ErrInvalidToken
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return 0, fmt.Errorf("create cipher: %w", err)
	}
	iv, ct := data[:aes.BlockSize], data[aes.BlockSize:]
	plain := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ct)

	plain, ok := pkcs7Unpad(plain, aes.BlockSize)
	if !ok || len(plain) != 8 {
		return 0, ErrInvalidToken
	}
	return int64(binary.BigEndian.Uint64(plain)), nil
}

func pkcs7Pad(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte, blockSize int) ([]byte, bool) {
	if len(b) == 0 || len(b)%blockSize != 0 {
		return nil, false
	}
	n := int(b[len(b)-1])
	if n == 0 || n > blockSize || n > len(b) {
		return nil, false
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return nil, false
		}
	}
	return b[:len(b)-n], true
}
