package smbauth

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/md4"
)

// Credentials identify the user an Authenticate message is made for.
type Credentials struct {
	Domain      string
	User        string
	Password    string
	Workstation string
}

// ParseCredentials splits an account written as DOMAIN\user or user@domain.
func ParseCredentials(account, password string) Credentials {
	creds := Credentials{User: account, Password: password}
	if domain, user, ok := strings.Cut(account, "\\"); ok {
		creds.Domain, creds.User = domain, user
	} else if user, domain, ok := strings.Cut(account, "@"); ok {
		creds.Domain, creds.User = domain, user
	}
	return creds
}

// NTOWFv1 is the NT hash: MD4 of the UTF-16LE password.
func NTOWFv1(password string) []byte {
	h := md4.New()
	h.Write(EncodeStringToUTF16LE(password))
	return h.Sum(nil)
}

// NTOWFv2 is HMAC_MD5(NTOWFv1(password), UTF16(Upper(user) + domain)).
// The domain keeps its case.
func NTOWFv2(password, user, domain string) []byte {
	return hmacMD5(NTOWFv1(password), EncodeStringToUTF16LE(strings.ToUpper(user)+domain))
}

func hmacMD5(key []byte, data ...[]byte) []byte {
	h := hmac.New(md5.New, key)
	for _, d := range data {
		h.Write(d)
	}
	return h.Sum(nil)
}

// NTLMv2ClientBlob builds the client half of an NTLMv2 response.
// targetInfo is the raw AV pair list from the Challenge, MsvAvEOL included.
func NTLMv2ClientBlob(clientChallenge [8]byte, timestamp uint64, targetInfo []byte) []byte {
	w := NewByteWriter(28 + len(targetInfo) + 4)
	w.WriteBytes([]byte{0x01, 0x01}) // RespType, HiRespType
	w.WriteZeros(6)
	w.WriteUint64(timestamp)
	w.WriteBytes(clientChallenge[:])
	w.WriteZeros(4)
	w.WriteBytes(targetInfo)
	w.WriteZeros(4)
	return w.Bytes()
}

// ComputeNTLMv2Response returns NTProofStr||blob and the session base key.
func ComputeNTLMv2Response(responseKeyNT []byte, serverChallenge [8]byte, blob []byte) (ntResponse, sessionBaseKey []byte) {
	ntProofStr := hmacMD5(responseKeyNT, serverChallenge[:], blob)
	ntResponse = make([]byte, 0, len(ntProofStr)+len(blob))
	ntResponse = append(ntResponse, ntProofStr...)
	ntResponse = append(ntResponse, blob...)
	return ntResponse, hmacMD5(responseKeyNT, ntProofStr)
}

// LMv2Response returns HMAC_MD5(key, serverChallenge||clientChallenge)||clientChallenge.
func LMv2Response(responseKeyLM []byte, serverChallenge, clientChallenge [8]byte) []byte {
	return append(hmacMD5(responseKeyLM, serverChallenge[:], clientChallenge[:]), clientChallenge[:]...)
}

// ComputeMIC returns the message integrity code over the three handshake
// messages. The MIC field of authenticate is treated as zero.
func ComputeMIC(exportedSessionKey, negotiate, challenge, authenticate []byte) [16]byte {
	zeroed := make([]byte, len(authenticate))
	copy(zeroed, authenticate)
	if len(zeroed) >= AuthenticateMessageSize {
		clear(zeroed[72:88])
	}

	var mic [16]byte
	copy(mic[:], hmacMD5(exportedSessionKey, negotiate, challenge, zeroed))
	return mic
}

func rc4Crypt(key, data []byte) ([]byte, error) {
	cipher, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	cipher.XORKeyStream(out, data)
	return out, nil
}

// buildAuthenticate answers challenge with an NTLMv2 response and returns
// the message and the exported session key.
func buildAuthenticate(challenge *ChallengeMessage, creds Credentials) ([]byte, []byte, error) {
	targetInfo, err := challenge.rawTargetInfo()
	if err != nil {
		return nil, nil, err
	}

	timestamp := TimeToFiletime(now())
	hasTimestamp := false
	if pairs, err := ParseAvPairs(targetInfo); err == nil {
		if ts, ok := pairs.Get(AvTimestamp); ok && len(ts) == 8 {
			timestamp = NewByteReader(ts).ReadUint64()
			hasTimestamp = true
		}
	}

	var clientChallenge [8]byte
	if _, err := io.ReadFull(rand.Reader, clientChallenge[:]); err != nil {
		return nil, nil, fmt.Errorf("client challenge: %w", err)
	}

	responseKey := NTOWFv2(creds.Password, creds.User, creds.Domain)
	blob := NTLMv2ClientBlob(clientChallenge, timestamp, targetInfo)
	ntResponse, sessionBaseKey := ComputeNTLMv2Response(responseKey, challenge.ServerChallenge, blob)

	// With a server timestamp the LM response is zeroed.
	lmResponse := make([]byte, 24)
	if !hasTimestamp {
		lmResponse = LMv2Response(responseKey, challenge.ServerChallenge, clientChallenge)
	}

	flags := challenge.Flags &^ (FlagNegotiateTargetInfo | FlagTargetTypeServer | FlagTargetTypeDomain)
	params := AuthenticateParams{
		Flags:               flags,
		LmChallengeResponse: lmResponse,
		NtChallengeResponse: ntResponse,
		DomainName:          creds.Domain,
		UserName:            creds.User,
		Workstation:         creds.Workstation,
	}

	sessionKey := sessionBaseKey
	if flags.Has(FlagNegotiateKeyExch) {
		exported := make([]byte, 16)
		if _, err := io.ReadFull(rand.Reader, exported); err != nil {
			return nil, nil, fmt.Errorf("session key: %w", err)
		}
		encrypted, err := rc4Crypt(sessionBaseKey, exported)
		if err != nil {
			return nil, nil, err
		}
		params.EncryptedRandomSessionKey = encrypted
		sessionKey = exported
	}

	return NewAuthenticateMessage(params), sessionKey, nil
}

// VerifyNTLMv2 checks the NT response against password and the server
// challenge the message answers. It returns the exported session key, which
// is the session base key unless FlagNegotiateKeyExch was negotiated; then
// the message must carry a 16-byte encrypted session key.
func (m *AuthenticateMessage) VerifyNTLMv2(serverChallenge [8]byte, password string) ([]byte, error) {
	ntResponse, err := m.NtChallengeResponse()
	if err != nil {
		return nil, err
	}
	// NTProofStr plus the fixed blob header
	if len(ntResponse) < 24 {
		return nil, fmt.Errorf("NT response of %d bytes: %w", len(ntResponse), ErrAuthenticationFailed)
	}

	user, err := m.UserName()
	if err != nil {
		return nil, err
	}
	domain, err := m.DomainName()
	if err != nil {
		return nil, err
	}

	responseKey := NTOWFv2(password, user, domain)
	ntProofStr, blob := ntResponse[:16], ntResponse[16:]
	expected := hmacMD5(responseKey, serverChallenge[:], blob)
	if !hmac.Equal(ntProofStr, expected) {
		return nil, fmt.Errorf("NTProofStr mismatch for %s\\%s: %w", domain, user, ErrAuthenticationFailed)
	}

	sessionBaseKey := hmacMD5(responseKey, ntProofStr)
	if !m.Flags.Has(FlagNegotiateKeyExch) {
		return sessionBaseKey, nil
	}

	encrypted, err := m.EncryptedRandomSessionKey()
	if err != nil {
		return nil, err
	}
	if len(encrypted) != 16 {
		return nil, fmt.Errorf("KEY_EXCH with %d-byte session key: %w", len(encrypted), ErrAuthenticationFailed)
	}
	return rc4Crypt(sessionBaseKey, encrypted)
}
