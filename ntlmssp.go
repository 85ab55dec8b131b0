package smbauth

import (
	"crypto/rand"
	"fmt"
	"io"
)

// NTLM message signature and types
const (
	ntlmSignature = "NTLMSSP\x00"

	NtLmNegotiate    uint32 = 1
	NtLmChallenge    uint32 = 2
	NtLmAuthenticate uint32 = 3
)

// Fixed record sizes; variable fields follow the record.
const (
	NegotiateMessageSize    = 40
	ChallengeMessageSize    = 56
	AuthenticateMessageSize = 88
)

// mandatoryFlags are set on every Negotiate and Challenge this package makes.
const mandatoryFlags = FlagNegotiateUnicode | FlagRequestTarget | FlagNegotiateNTLM | FlagNegotiateAlwaysSign

// authenticateFlags are the flags stamped on an Authenticate record:
// 56|KEY_EXCH|128|VERSION|EXTENDED_SESSIONSECURITY|ALWAYS_SIGN|NTLM|LM_KEY|SIGN|REQUEST_TARGET|OEM|UNICODE.
const authenticateFlags NegotiateFlags = 0xE2088297

// DefaultVersion is stamped when FlagNegotiateVersion is set (Windows 10, build 19041).
var DefaultVersion = Version{Major: 10, Minor: 0, Build: 19041, Revision: NTLMRevisionW2K3}

// NegotiateMessage is the fixed part of an NTLM NEGOTIATE_MESSAGE.
type NegotiateMessage struct {
	Flags            NegotiateFlags
	DomainNameField  VarField
	WorkstationField VarField
	Version          Version

	raw []byte
}

// ChallengeMessage is the fixed part of an NTLM CHALLENGE_MESSAGE.
type ChallengeMessage struct {
	TargetNameField VarField
	Flags           NegotiateFlags
	ServerChallenge [8]byte
	Reserved        [8]byte
	TargetInfoField VarField
	Version         Version

	raw []byte
}

// AuthenticateMessage is the fixed part of an NTLM AUTHENTICATE_MESSAGE.
type AuthenticateMessage struct {
	LmChallengeResponseField       VarField
	NtChallengeResponseField       VarField
	DomainNameField                VarField
	UserNameField                  VarField
	WorkstationField               VarField
	EncryptedRandomSessionKeyField VarField
	Flags                          NegotiateFlags
	Version                        Version
	MIC                            [16]byte

	raw []byte
}

// payloadBuilder lays out variable fields after a fixed record.
type payloadBuilder struct {
	offset int
	data   []byte
}

func newPayloadBuilder(recordSize int) *payloadBuilder {
	return &payloadBuilder{offset: recordSize}
}

func (p *payloadBuilder) add(b []byte) VarField {
	if len(b) == 0 {
		return VarField{}
	}
	f := newVarField(&p.offset, len(b))
	p.data = append(p.data, b...)
	return f
}

// encodeString encodes s as UTF-16LE when unicode is set, otherwise as OEM bytes.
func encodeString(s string, unicode bool) []byte {
	if s == "" {
		return nil
	}
	if unicode {
		return EncodeStringToUTF16LE(s)
	}
	return []byte(s)
}

func writeMessageHeader(w *ByteWriter, msgType uint32) {
	w.WriteBytes([]byte(ntlmSignature))
	w.WriteUint32(msgType)
}

// Marshal encodes the fixed record only.
func (m *NegotiateMessage) Marshal() []byte {
	w := NewByteWriter(NegotiateMessageSize)
	writeMessageHeader(w, NtLmNegotiate)
	w.WriteUint32(uint32(m.Flags))
	w.WriteVarField(m.DomainNameField)
	w.WriteVarField(m.WorkstationField)
	m.Version.marshal(w)
	return w.Bytes()
}

// Marshal encodes the fixed record only.
func (m *ChallengeMessage) Marshal() []byte {
	w := NewByteWriter(ChallengeMessageSize)
	writeMessageHeader(w, NtLmChallenge)
	w.WriteVarField(m.TargetNameField)
	w.WriteUint32(uint32(m.Flags))
	w.WriteBytes(m.ServerChallenge[:])
	w.WriteBytes(m.Reserved[:])
	w.WriteVarField(m.TargetInfoField)
	m.Version.marshal(w)
	return w.Bytes()
}

// Marshal encodes the fixed record only.
func (m *AuthenticateMessage) Marshal() []byte {
	w := NewByteWriter(AuthenticateMessageSize)
	writeMessageHeader(w, NtLmAuthenticate)
	w.WriteVarField(m.LmChallengeResponseField)
	w.WriteVarField(m.NtChallengeResponseField)
	w.WriteVarField(m.DomainNameField)
	w.WriteVarField(m.UserNameField)
	w.WriteVarField(m.WorkstationField)
	w.WriteVarField(m.EncryptedRandomSessionKeyField)
	w.WriteUint32(uint32(m.Flags))
	m.Version.marshal(w)
	w.WriteBytes(m.MIC[:])
	return w.Bytes()
}

// NewNegotiateMessage builds a Negotiate message carrying OEM domain and
// workstation names. The matching *_SUPPLIED flags are set for non-empty names.
func NewNegotiateMessage(flags NegotiateFlags, domain, workstation string) []byte {
	p := newPayloadBuilder(NegotiateMessageSize)
	m := NegotiateMessage{Flags: flags}
	if domain != "" {
		m.Flags |= FlagNegotiateDomainSupplied
		m.DomainNameField = p.add([]byte(domain))
	}
	if workstation != "" {
		m.Flags |= FlagNegotiateWorkstationSupplied
		m.WorkstationField = p.add([]byte(workstation))
	}
	if m.Flags.Has(FlagNegotiateVersion) {
		m.Version = DefaultVersion
	}
	return append(m.Marshal(), p.data...)
}

// NewChallengeMessage builds a Challenge message. A non-empty targetInfo sets
// FlagNegotiateTargetInfo.
func NewChallengeMessage(flags NegotiateFlags, serverChallenge [8]byte, targetName string, targetInfo AvPairs) []byte {
	p := newPayloadBuilder(ChallengeMessageSize)
	m := ChallengeMessage{Flags: flags, ServerChallenge: serverChallenge}
	m.TargetNameField = p.add(encodeString(targetName, flags.Has(FlagNegotiateUnicode)))
	if len(targetInfo) > 0 {
		m.Flags |= FlagNegotiateTargetInfo
		m.TargetInfoField = p.add(targetInfo.Marshal())
	}
	if m.Flags.Has(FlagNegotiateVersion) {
		m.Version = DefaultVersion
	}
	return append(m.Marshal(), p.data...)
}

// AuthenticateParams holds the payload of an Authenticate message.
type AuthenticateParams struct {
	Flags                     NegotiateFlags
	LmChallengeResponse       []byte
	NtChallengeResponse       []byte
	DomainName                string
	UserName                  string
	Workstation               string
	EncryptedRandomSessionKey []byte
	MIC                       [16]byte
}

// NewAuthenticateMessage builds an Authenticate message. Names are UTF-16LE
// when FlagNegotiateUnicode is set.
func NewAuthenticateMessage(params AuthenticateParams) []byte {
	unicode := params.Flags.Has(FlagNegotiateUnicode)
	p := newPayloadBuilder(AuthenticateMessageSize)
	m := AuthenticateMessage{Flags: params.Flags, MIC: params.MIC}
	m.LmChallengeResponseField = p.add(params.LmChallengeResponse)
	m.NtChallengeResponseField = p.add(params.NtChallengeResponse)
	m.DomainNameField = p.add(encodeString(params.DomainName, unicode))
	m.UserNameField = p.add(encodeString(params.UserName, unicode))
	m.WorkstationField = p.add(encodeString(params.Workstation, unicode))
	m.EncryptedRandomSessionKeyField = p.add(params.EncryptedRandomSessionKey)
	if m.Flags.Has(FlagNegotiateVersion) {
		m.Version = DefaultVersion
	}
	return append(m.Marshal(), p.data...)
}

// checkMessage validates size, then signature, then message type.
func checkMessage(b []byte, size int, want uint32) error {
	if len(b) < size {
		return fmt.Errorf("%d bytes, need %d: %w", len(b), size, ErrSizeTooSmall)
	}
	if string(b[:8]) != ntlmSignature {
		return fmt.Errorf("got %q: %w", b[:8], ErrSignatureMismatch)
	}
	if got := le.Uint32(b[8:12]); got != want {
		return fmt.Errorf("got type %d, want %d: %w", got, want, ErrWrongMessageType)
	}
	return nil
}

// MessageType returns the discriminant of an NTLM message.
func MessageType(b []byte) (uint32, error) {
	if len(b) < 12 {
		return 0, fmt.Errorf("%d bytes, need 12: %w", len(b), ErrSizeTooSmall)
	}
	if string(b[:8]) != ntlmSignature {
		return 0, fmt.Errorf("got %q: %w", b[:8], ErrSignatureMismatch)
	}
	return le.Uint32(b[8:12]), nil
}

// ParseNegotiateMessage decodes the fixed record of a Negotiate message.
// Variable fields are read on demand and bounds-checked against b.
func ParseNegotiateMessage(b []byte) (*NegotiateMessage, error) {
	if err := checkMessage(b, NegotiateMessageSize, NtLmNegotiate); err != nil {
		return nil, err
	}
	r := NewByteReader(b)
	r.Skip(12)
	return &NegotiateMessage{
		Flags:            NegotiateFlags(r.ReadUint32()),
		DomainNameField:  r.ReadVarField(),
		WorkstationField: r.ReadVarField(),
		Version:          readVersion(r),
		raw:              b,
	}, nil
}

// ParseChallengeMessage decodes the fixed record of a Challenge message.
func ParseChallengeMessage(b []byte) (*ChallengeMessage, error) {
	if err := checkMessage(b, ChallengeMessageSize, NtLmChallenge); err != nil {
		return nil, err
	}
	r := NewByteReader(b)
	r.Skip(12)
	m := &ChallengeMessage{raw: b}
	m.TargetNameField = r.ReadVarField()
	m.Flags = NegotiateFlags(r.ReadUint32())
	copy(m.ServerChallenge[:], r.ReadBytes(8))
	copy(m.Reserved[:], r.ReadBytes(8))
	m.TargetInfoField = r.ReadVarField()
	m.Version = readVersion(r)
	return m, nil
}

// ParseAuthenticateMessage decodes the fixed record of an Authenticate message.
func ParseAuthenticateMessage(b []byte) (*AuthenticateMessage, error) {
	if err := checkMessage(b, AuthenticateMessageSize, NtLmAuthenticate); err != nil {
		return nil, err
	}
	r := NewByteReader(b)
	r.Skip(12)
	m := &AuthenticateMessage{raw: b}
	m.LmChallengeResponseField = r.ReadVarField()
	m.NtChallengeResponseField = r.ReadVarField()
	m.DomainNameField = r.ReadVarField()
	m.UserNameField = r.ReadVarField()
	m.WorkstationField = r.ReadVarField()
	m.EncryptedRandomSessionKeyField = r.ReadVarField()
	m.Flags = NegotiateFlags(r.ReadUint32())
	m.Version = readVersion(r)
	copy(m.MIC[:], r.ReadBytes(16))
	return m, nil
}

// DomainName returns the OEM domain name, if supplied.
func (m *NegotiateMessage) DomainName() (string, error) {
	return m.DomainNameField.ReadStringFrom(m.raw, false)
}

// Workstation returns the OEM workstation name, if supplied.
func (m *NegotiateMessage) Workstation() (string, error) {
	return m.WorkstationField.ReadStringFrom(m.raw, false)
}

// TargetName returns the server's target name.
func (m *ChallengeMessage) TargetName() (string, error) {
	return m.TargetNameField.ReadStringFrom(m.raw, m.Flags.Has(FlagNegotiateUnicode))
}

// TargetInfo decodes the AV pairs, or returns nil when none were sent.
func (m *ChallengeMessage) TargetInfo() (AvPairs, error) {
	if m.TargetInfoField.Len == 0 {
		return nil, nil
	}
	b, err := m.TargetInfoField.ReadFrom(m.raw)
	if err != nil {
		return nil, err
	}
	return ParseAvPairs(b)
}

func (m *ChallengeMessage) rawTargetInfo() ([]byte, error) {
	return m.TargetInfoField.ReadFrom(m.raw)
}

// LmChallengeResponse returns the LM response bytes.
func (m *AuthenticateMessage) LmChallengeResponse() ([]byte, error) {
	return m.LmChallengeResponseField.ReadFrom(m.raw)
}

// NtChallengeResponse returns the NT response bytes.
func (m *AuthenticateMessage) NtChallengeResponse() ([]byte, error) {
	return m.NtChallengeResponseField.ReadFrom(m.raw)
}

// DomainName returns the client's domain.
func (m *AuthenticateMessage) DomainName() (string, error) {
	return m.DomainNameField.ReadStringFrom(m.raw, m.Flags.Has(FlagNegotiateUnicode))
}

// UserName returns the client's user name.
func (m *AuthenticateMessage) UserName() (string, error) {
	return m.UserNameField.ReadStringFrom(m.raw, m.Flags.Has(FlagNegotiateUnicode))
}

// Workstation returns the client's workstation name.
func (m *AuthenticateMessage) Workstation() (string, error) {
	return m.WorkstationField.ReadStringFrom(m.raw, m.Flags.Has(FlagNegotiateUnicode))
}

// EncryptedRandomSessionKey returns the RC4-encrypted exported session key.
func (m *AuthenticateMessage) EncryptedRandomSessionKey() ([]byte, error) {
	return m.EncryptedRandomSessionKeyField.ReadFrom(m.raw)
}

// MakeNegotiate returns a bare Negotiate record carrying the mandatory flags.
func (c *Conn) MakeNegotiate() []byte {
	m := NegotiateMessage{Flags: mandatoryFlags}
	return m.Marshal()
}

// TakeNegotiate validates a Negotiate message and records its flags as the
// peer's negotiated flags.
func (c *Conn) TakeNegotiate(b []byte) (*NegotiateMessage, error) {
	m, err := ParseNegotiateMessage(b)
	if err != nil {
		c.logger.Warn("ntlmssp: rejected negotiate (%d bytes): %v", len(b), err)
		return nil, err
	}

	c.mu.Lock()
	c.peerFlags = m.Flags
	c.mu.Unlock()

	c.logger.Debug("ntlmssp: negotiate flags=%s", m.Flags)
	return m, nil
}

// MakeChallenge returns a Challenge record with the mandatory flags and a
// fresh random server challenge, which is remembered for verification. When
// Config.TargetName is set, the target name and target info follow the record.
func (c *Conn) MakeChallenge() ([]byte, error) {
	var nonce [8]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("server challenge: %w", err)
	}

	c.mu.Lock()
	c.serverChallenge = nonce
	c.mu.Unlock()

	name := c.cfg.TargetName
	if name == "" {
		m := ChallengeMessage{Flags: mandatoryFlags, ServerChallenge: nonce}
		return m.Marshal(), nil
	}

	nameUTF16 := EncodeStringToUTF16LE(name)
	timestamp := le.AppendUint64(nil, TimeToFiletime(now()))
	info := AvPairs{
		{ID: AvNbDomainName, Value: nameUTF16},
		{ID: AvNbComputerName, Value: nameUTF16},
		{ID: AvTimestamp, Value: timestamp},
	}
	msg := NewChallengeMessage(mandatoryFlags|FlagTargetTypeServer, nonce, name, info)
	c.logger.Debug("ntlmssp: challenge target=%q size=%d", name, len(msg))
	return msg, nil
}

// TakeChallenge validates a Challenge message and records its flags and
// server challenge.
func (c *Conn) TakeChallenge(b []byte) (*ChallengeMessage, error) {
	m, err := ParseChallengeMessage(b)
	if err != nil {
		c.logger.Warn("ntlmssp: rejected challenge (%d bytes): %v", len(b), err)
		return nil, err
	}

	c.mu.Lock()
	c.peerFlags = m.Flags
	c.serverChallenge = m.ServerChallenge
	c.challenge = m
	c.mu.Unlock()

	c.logger.Debug("ntlmssp: challenge flags=%s", m.Flags)
	return m, nil
}

// MakeAuthenticate returns a bare Authenticate record. Use
// MakeAuthenticateWithCredentials to produce a response a server can verify.
func (c *Conn) MakeAuthenticate() []byte {
	m := AuthenticateMessage{Flags: authenticateFlags}
	return m.Marshal()
}

// MakeAuthenticateWithCredentials answers the last Challenge taken on c with
// an NTLMv2 response for creds. The exported session key becomes available
// from SessionKey.
func (c *Conn) MakeAuthenticateWithCredentials(creds Credentials) ([]byte, error) {
	c.mu.Lock()
	challenge := c.challenge
	c.mu.Unlock()
	if challenge == nil {
		return nil, fmt.Errorf("no challenge taken: %w", ErrInvalidMessage)
	}

	msg, sessionKey, err := buildAuthenticate(challenge, creds)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.sessionKey = sessionKey
	c.mu.Unlock()
	return msg, nil
}

// TakeAuthenticate validates an Authenticate message.
func (c *Conn) TakeAuthenticate(b []byte) (*AuthenticateMessage, error) {
	m, err := ParseAuthenticateMessage(b)
	if err != nil {
		c.logger.Warn("ntlmssp: rejected authenticate (%d bytes): %v", len(b), err)
		return nil, err
	}
	c.logger.Debug("ntlmssp: authenticate flags=%s", m.Flags)
	return m, nil
}

// VerifyAuthenticate checks m against the server challenge made on c and
// returns the session key.
func (c *Conn) VerifyAuthenticate(m *AuthenticateMessage, password string) ([]byte, error) {
	key, err := m.VerifyNTLMv2(c.ServerChallenge(), password)
	if err != nil {
		c.logger.Warn("ntlmssp: %v", err)
		return nil, err
	}

	c.mu.Lock()
	c.sessionKey = key
	c.mu.Unlock()
	return key, nil
}
