package smbauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
)

// SMBDialect is a negotiated SMB2 dialect revision. It selects the signing
// algorithm and key derivation.
type SMBDialect uint16

const (
	SMB2_0_2 SMBDialect = 0x0202
	SMB2_1   SMBDialect = 0x0210
	SMB3_0   SMBDialect = 0x0300
	SMB3_0_2 SMBDialect = 0x0302
	SMB3_1_1 SMBDialect = 0x0311
)

func (d SMBDialect) String() string {
	switch d {
	case SMB2_0_2:
		return "SMB 2.0.2"
	case SMB2_1:
		return "SMB 2.1"
	case SMB3_0:
		return "SMB 3.0"
	case SMB3_0_2:
		return "SMB 3.0.2"
	case SMB3_1_1:
		return "SMB 3.1.1"
	default:
		return fmt.Sprintf("SMB 0x%04X", uint16(d))
	}
}

// Signature field of the SMB2 header.
const (
	SignatureOffset = 48
	SignatureLength = 16
)

// PreauthHashSize is the SHA-512 size of the SMB 3.1.1 preauth integrity hash.
const PreauthHashSize = sha512.Size

// SignMessage computes the signature of an SMB2 message with its signature
// field taken as zero. SMB 2.x uses HMAC-SHA256 and SMB 3.x uses AES-128-CMAC.
// It returns nil for an empty key or a message shorter than the header.
func SignMessage(message, signingKey []byte, dialect SMBDialect) []byte {
	if len(signingKey) == 0 || len(message) < SMB2HeaderSize {
		return nil
	}

	msgCopy := make([]byte, len(message))
	copy(msgCopy, message)
	clear(msgCopy[SignatureOffset : SignatureOffset+SignatureLength])

	if dialect >= SMB3_0 {
		return computeAESCMAC(msgCopy, signingKey)
	}
	return computeHMACSHA256(msgCopy, signingKey)
}

// VerifySignature reports whether the signature field of message matches
// the one computed with signingKey.
func VerifySignature(message, signingKey []byte, dialect SMBDialect) bool {
	expected := SignMessage(message, signingKey, dialect)
	if expected == nil {
		return false
	}
	return hmac.Equal(message[SignatureOffset:SignatureOffset+SignatureLength], expected)
}

// ApplySignature sets the signed flag on message and writes its signature in place.
func ApplySignature(message, signingKey []byte, dialect SMBDialect) {
	if len(message) < SMB2HeaderSize {
		return
	}
	flags := binary.LittleEndian.Uint32(message[16:20])
	binary.LittleEndian.PutUint32(message[16:20], flags|SMB2_FLAGS_SIGNED)

	if sig := SignMessage(message, signingKey, dialect); sig != nil {
		copy(message[SignatureOffset:SignatureOffset+SignatureLength], sig)
	}
}

// computeHMACSHA256 returns the first 16 bytes of HMAC-SHA256 keyed with
// the key zero-padded or truncated to 16 bytes.
func computeHMACSHA256(message, key []byte) []byte {
	signingKey := make([]byte, 16)
	copy(signingKey, key)

	h := hmac.New(sha256.New, signingKey)
	h.Write(message)
	return h.Sum(nil)[:16]
}

// computeAESCMAC computes AES-128-CMAC (RFC 4493).
func computeAESCMAC(message, key []byte) []byte {
	signingKey := make([]byte, 16)
	copy(signingKey, key)

	block, err := aes.NewCipher(signingKey)
	if err != nil {
		return nil
	}
	k1, k2 := generateCMACSubkeys(block)

	n := (len(message) + aes.BlockSize - 1) / aes.BlockSize
	if n == 0 {
		n = 1
	}

	lastBlock := make([]byte, aes.BlockSize)
	if len(message) > 0 && len(message)%aes.BlockSize == 0 {
		copy(lastBlock, message[(n-1)*aes.BlockSize:])
		xorBytes(lastBlock, k1)
	} else {
		copy(lastBlock, message[(n-1)*aes.BlockSize:])
		lastBlock[len(message)%aes.BlockSize] = 0x80
		xorBytes(lastBlock, k2)
	}

	x := make([]byte, aes.BlockSize)
	for i := 0; i < n-1; i++ {
		xorBytes(x, message[i*aes.BlockSize:(i+1)*aes.BlockSize])
		block.Encrypt(x, x)
	}
	xorBytes(x, lastBlock)
	block.Encrypt(x, x)
	return x
}

func generateCMACSubkeys(block cipher.Block) (k1, k2 []byte) {
	const rb = 0x87

	l := make([]byte, aes.BlockSize)
	block.Encrypt(l, l)

	k1 = make([]byte, aes.BlockSize)
	shiftLeft(k1, l)
	if l[0]&0x80 != 0 {
		k1[15] ^= rb
	}

	k2 = make([]byte, aes.BlockSize)
	shiftLeft(k2, k1)
	if k1[0]&0x80 != 0 {
		k2[15] ^= rb
	}
	return k1, k2
}

func shiftLeft(dst, src []byte) {
	var overflow byte
	for i := len(src) - 1; i >= 0; i-- {
		next := src[i] >> 7
		dst[i] = src[i]<<1 | overflow
		overflow = next
	}
}

func xorBytes(dst, src []byte) {
	for i := 0; i < len(dst) && i < len(src); i++ {
		dst[i] ^= src[i]
	}
}

// DeriveSigningKey returns the signing key for a session.
//
//	SMB 2.x:      the session key itself
//	SMB 3.0:      KDF(SessionKey, "SMB2AESCMAC\0", "SmbSign\0")
//	SMB 3.1.1:    KDF(SessionKey, "SMBSigningKey\0", preauthHash)
//
// SMB 3.1.1 without a preauth hash falls back to the 3.0 labels.
func DeriveSigningKey(sessionKey []byte, dialect SMBDialect, preauthHash []byte) []byte {
	if dialect < SMB3_0 {
		key := make([]byte, len(sessionKey))
		copy(key, sessionKey)
		return key
	}

	label, context := []byte("SMB2AESCMAC\x00"), []byte("SmbSign\x00")
	if dialect >= SMB3_1_1 && len(preauthHash) > 0 {
		label, context = []byte("SMBSigningKey\x00"), preauthHash
	}
	return kdfSP800108(sessionKey, label, context, 16)
}

// kdfSP800108 is the SP800-108 counter mode KDF with HMAC-SHA256 and a
// 32-bit counter:
//
//	K(i) = HMAC(KI, [i]_2 || Label || 0x00 || Context || [L]_2)
func kdfSP800108(ki, label, context []byte, lengthBytes int) []byte {
	var lengthBits [4]byte
	binary.BigEndian.PutUint32(lengthBits[:], uint32(lengthBytes*8))

	result := make([]byte, 0, lengthBytes+sha256.Size)
	for counter := uint32(1); len(result) < lengthBytes; counter++ {
		var i [4]byte
		binary.BigEndian.PutUint32(i[:], counter)

		h := hmac.New(sha256.New, ki)
		h.Write(i[:])
		h.Write(label)
		h.Write([]byte{0x00})
		h.Write(context)
		h.Write(lengthBits[:])
		result = h.Sum(result)
	}
	return result[:lengthBytes]
}

// UpdatePreauthHash returns SHA-512(current || message). A nil current
// hash starts from 64 zero bytes.
func UpdatePreauthHash(current, message []byte) []byte {
	if len(current) == 0 {
		current = make([]byte, PreauthHashSize)
	}
	h := sha512.New()
	h.Write(current)
	h.Write(message)
	return h.Sum(nil)
}
