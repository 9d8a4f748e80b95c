package autopush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// RFC 8291 message encryption for Web Push, aes128gcm content coding (RFC 8188).
const (
	AUTH_SECRET_LEN = 16

	saltLen     = 16
	headerLen   = saltLen + 4 + 1
	gcmOverhead = 16
	minRS       = gcmOverhead + 2
	ikmLen      = 32
	cekLen      = 16
	nonceLen    = 12
)

var (
	webPushInfo = []byte("WebPush: info\x00")
	cekInfo     = []byte("Content-Encoding: aes128gcm\x00")
	nonceInfo   = []byte("Content-Encoding: nonce\x00")

	ErrShortRecord = errors.New("autopush: encrypted record is too short")
	ErrPadding     = errors.New("autopush: invalid record padding")
	ErrRecordSize  = errors.New("autopush: payload does not fit a single record")
)

// Keys are the user agent secrets a subscription is created with.
type Keys struct {
	AuthSecret []byte
	PrivateKey *ecdh.PrivateKey
}

func NewKeys() (Keys, error) {
	auth := make([]byte, AUTH_SECRET_LEN)
	if _, err := io.ReadFull(rand.Reader, auth); err != nil {
		return Keys{}, fmt.Errorf("autopush: generate auth secret: %w", err)
	}

	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return Keys{}, fmt.Errorf("autopush: generate ecdh key: %w", err)
	}
	return Keys{AuthSecret: auth, PrivateKey: key}, nil
}

// P256DH is the public key in the form browsers expose it on a subscription.
func (k Keys) P256DH() string {
	return base64.RawURLEncoding.EncodeToString(k.PrivateKey.PublicKey().Bytes())
}

func (k Keys) Auth() string {
	return base64.RawURLEncoding.EncodeToString(k.AuthSecret)
}

// record is a single aes128gcm record: salt | rs | idlen | keyid | ciphertext.
type record struct {
	salt       []byte
	rs         uint32
	keyID      []byte
	ciphertext []byte
}

func parseRecord(data []byte) (record, error) {
	if len(data) < headerLen {
		return record{}, ErrShortRecord
	}

	idLen := int(data[headerLen-1])
	if len(data) < headerLen+idLen+gcmOverhead {
		return record{}, ErrShortRecord
	}

	rec := record{
		salt:       data[:saltLen],
		rs:         binary.BigEndian.Uint32(data[saltLen : saltLen+4]),
		keyID:      data[headerLen : headerLen+idLen],
		ciphertext: data[headerLen+idLen:],
	}

	// web push messages are always a single record
	if rec.rs < minRS || uint64(len(rec.ciphertext)) > uint64(rec.rs) {
		return record{}, ErrRecordSize
	}
	return rec, nil
}

// Decrypt opens the base64url encoded record carried by a notification.
func (k Keys) Decrypt(encoded string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return nil, fmt.Errorf("autopush: base64 decode: %w", err)
	}

	rec, err := parseRecord(data)
	if err != nil {
		return nil, err
	}

	serverKey, err := ecdh.P256().NewPublicKey(rec.keyID)
	if err != nil {
		return nil, fmt.Errorf("autopush: application server key: %w", err)
	}

	cek, nonce, err := k.deriveContentKeys(serverKey, rec.salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(cek)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, nonce, rec.ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("autopush: decrypt: %w", err)
	}
	return unpad(plaintext)
}

func (k Keys) deriveContentKeys(serverKey *ecdh.PublicKey, salt []byte) (cek, nonce []byte, err error) {
	shared, err := k.PrivateKey.ECDH(serverKey)
	if err != nil {
		return nil, nil, fmt.Errorf("autopush: ecdh: %w", err)
	}

	info := bytes.Join([][]byte{
		webPushInfo,
		k.PrivateKey.PublicKey().Bytes(),
		serverKey.Bytes(),
	}, nil)

	ikm := make([]byte, ikmLen)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, k.AuthSecret, info), ikm); err != nil {
		return nil, nil, fmt.Errorf("autopush: derive ikm: %w", err)
	}

	prk := hkdf.Extract(sha256.New, ikm, salt)

	cek = make([]byte, cekLen)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, cekInfo), cek); err != nil {
		return nil, nil, fmt.Errorf("autopush: derive cek: %w", err)
	}

	nonce = make([]byte, nonceLen)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, nonceInfo), nonce); err != nil {
		return nil, nil, fmt.Errorf("autopush: derive nonce: %w", err)
	}
	return cek, nonce, nil
}

func newGCM(cek []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("autopush: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("autopush: gcm: %w", err)
	}
	return gcm, nil
}

// unpad strips trailing zero padding and the 0x02 (last record) or 0x01
// delimiter.
func unpad(plaintext []byte) ([]byte, error) {
	end := len(plaintext)
	for end > 0 && plaintext[end-1] == 0 {
		end--
	}
	if end == 0 {
		return nil, ErrPadding
	}
	switch plaintext[end-1] {
	case 0x01, 0x02:
		return plaintext[:end-1], nil
	}
	return nil, ErrPadding
}
