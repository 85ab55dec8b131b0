package smbauth

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Conn is one SMB2 connection as seen by the security layer: a transport,
// its credit window, the peer's negotiated NTLM flags and the handshake
// state. The credit window may be used from a send and a receive goroutine
// at once; NTLM and DER operations on a Conn are sequential.
type Conn struct {
	transport net.Conn
	cfg       *Config
	logger    Logger
	credits   *CreditWindow

	mu              sync.Mutex
	peerFlags       NegotiateFlags
	serverChallenge [8]byte
	challenge       *ChallengeMessage
	sessionKey      []byte
	signingKey      []byte
	dialect         SMBDialect
	state           HandshakeState

	readMu    sync.Mutex
	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool
}

// NewConn wraps transport. A nil transport gives a Conn that can still make
// and take NTLM messages but cannot send or receive frames. cfg may be nil.
func NewConn(transport net.Conn, cfg *Config) (*Conn, error) {
	var c Config
	if cfg != nil {
		c = *cfg
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	c.setDefaults()

	logger := c.Logger
	if dl, ok := logger.(*DefaultLogger); ok && transport != nil {
		logger = dl.WithField("remote", transport.RemoteAddr().String())
	}

	return &Conn{
		transport: transport,
		cfg:       &c,
		logger:    logger,
		credits:   NewCreditWindow(0, uint64(c.InitialCredits)),
	}, nil
}

// Credits returns the connection's credit window.
func (c *Conn) Credits() *CreditWindow {
	return c.credits
}

// AcquireMessageID takes the next message id, waiting under the retry policy
// while the window is empty.
func (c *Conn) AcquireMessageID(ctx context.Context) (uint64, error) {
	return c.acquire(ctx, 1)
}

func (c *Conn) acquire(ctx context.Context, charge uint16) (uint64, error) {
	var id uint64
	err := c.withRetry(ctx, func() error {
		if c.closed.Load() {
			return ErrConnectionClosed
		}
		var err error
		id, err = c.credits.NextMessageIDs(charge)
		return err
	})
	return id, err
}

// NewBuffer returns an owned DER buffer bounded by Config.MaxBufferSize.
func (c *Conn) NewBuffer() *Buffer {
	return NewBufferSize(c.cfg.MaxBufferSize)
}

// PeerFlags returns the flags of the last Negotiate or Challenge taken.
func (c *Conn) PeerFlags() NegotiateFlags {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerFlags
}

// ServerChallenge returns the server challenge made or taken on c.
func (c *Conn) ServerChallenge() [8]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverChallenge
}

// SessionKey returns a copy of the exported session key, or nil before
// authentication.
func (c *Conn) SessionKey() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey == nil {
		return nil
	}
	key := make([]byte, len(c.sessionKey))
	copy(key, c.sessionKey)
	return key
}

// EnableSigning derives the signing key for dialect from the session key.
// From then on frames carrying a session id are signed on send and must
// carry a valid signature on receive. preauthHash is only used by SMB 3.1.1.
func (c *Conn) EnableSigning(dialect SMBDialect, preauthHash []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionKey == nil {
		return ErrNoSessionKey
	}
	c.signingKey = DeriveSigningKey(c.sessionKey, dialect, preauthHash)
	c.dialect = dialect
	c.logger.Debug("signing enabled for %s", dialect)
	return nil
}

// signer returns the signing key and dialect, or a nil key when signing is off.
func (c *Conn) signer() ([]byte, SMBDialect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.signingKey, c.dialect
}

// State returns the handshake state.
func (c *Conn) State() HandshakeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState records a handshake transition.
func (c *Conn) SetState(s HandshakeState) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	c.logger.Debug("handshake %s -> %s", prev, s)
}

// AdvanceState moves the handshake to its next state and returns it.
func (c *Conn) AdvanceState() HandshakeState {
	next := c.State().Next()
	c.SetState(next)
	return next
}

// Send stamps hdr with message ids drawn from the credit window and writes
// one frame. CreditCharge ids are consumed, at least one. It returns the
// first id used.
func (c *Conn) Send(ctx context.Context, hdr *SMB2Header, payload []byte) (uint64, error) {
	if c.transport == nil || c.closed.Load() {
		return 0, ErrConnectionClosed
	}
	if err := c.checkSize(payload); err != nil {
		return 0, err
	}

	id, err := c.acquire(ctx, hdr.CreditCharge)
	if err != nil {
		return 0, err
	}
	hdr.MessageID = id

	if err := c.writeFrame(ctx, hdr, payload); err != nil {
		return 0, err
	}
	return id, nil
}

// Reply answers req with hdr marked as a response. It reuses the request's
// message id and consumes no credits; hdr.CreditRequest is the grant.
func (c *Conn) Reply(ctx context.Context, req, hdr *SMB2Header, payload []byte) error {
	if c.transport == nil || c.closed.Load() {
		return ErrConnectionClosed
	}
	if err := c.checkSize(payload); err != nil {
		return err
	}

	hdr.MessageID = req.MessageID
	hdr.Command = req.Command
	hdr.SessionID = req.SessionID
	hdr.Flags |= SMB2_FLAGS_SERVER_TO_REDIR
	return c.writeFrame(ctx, hdr, payload)
}

func (c *Conn) checkSize(payload []byte) error {
	msgLen := SMB2HeaderSize + len(payload)
	if msgLen > c.cfg.MaxMessageSize {
		return fmt.Errorf("frame of %d bytes exceeds %d: %w", msgLen, c.cfg.MaxMessageSize, ErrInvalidMessage)
	}
	return nil
}

func (c *Conn) writeFrame(ctx context.Context, hdr *SMB2Header, payload []byte) error {
	msgLen := SMB2HeaderSize + len(payload)

	// Build NetBIOS header + SMB2 message
	buf := make([]byte, netbiosHeaderSize+msgLen)
	buf[0] = 0x00 // NetBIOS session message
	buf[1] = byte(msgLen >> 16)
	buf[2] = byte(msgLen >> 8)
	buf[3] = byte(msgLen)
	if key, dialect := c.signer(); key != nil && hdr.SessionID != 0 {
		hdr.Flags |= SMB2_FLAGS_SIGNED
		copy(buf[netbiosHeaderSize:], hdr.Marshal())
		copy(buf[netbiosHeaderSize+SMB2HeaderSize:], payload)
		ApplySignature(buf[netbiosHeaderSize:], key, dialect)
		copy(hdr.Signature[:], buf[netbiosHeaderSize+SignatureOffset:])
	} else {
		copy(buf[netbiosHeaderSize:], hdr.Marshal())
		copy(buf[netbiosHeaderSize+SMB2HeaderSize:], payload)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.transport.SetWriteDeadline(c.deadline(ctx, c.cfg.WriteTimeout)); err != nil {
		return err
	}
	if _, err := c.transport.Write(buf); err != nil {
		return c.transportError(err)
	}

	c.logger.Debug("sent %s id=%d len=%d", CommandName(hdr.Command), hdr.MessageID, msgLen)
	return nil
}

// Receive reads one frame. Credits granted by a response are added to the
// window before it is returned.
func (c *Conn) Receive(ctx context.Context) (*SMB2Message, error) {
	if c.transport == nil || c.closed.Load() {
		return nil, ErrConnectionClosed
	}

	c.readMu.Lock()
	defer c.readMu.Unlock()

	if err := c.transport.SetReadDeadline(c.deadline(ctx, c.cfg.ReadTimeout)); err != nil {
		return nil, err
	}

	// Read NetBIOS header (4 bytes: 0x00 + 3-byte length)
	nbHeader := make([]byte, netbiosHeaderSize)
	if _, err := io.ReadFull(c.transport, nbHeader); err != nil {
		return nil, c.transportError(err)
	}

	// Parse length (24-bit big-endian)
	msgLen := int(nbHeader[1])<<16 | int(nbHeader[2])<<8 | int(nbHeader[3])
	if nbHeader[0] != 0x00 || msgLen < SMB2HeaderSize || msgLen > c.cfg.MaxMessageSize {
		c.logger.Warn("rejected frame type=0x%02x len=%d", nbHeader[0], msgLen)
		return nil, fmt.Errorf("frame type 0x%02x, length %d: %w", nbHeader[0], msgLen, ErrInvalidMessage)
	}

	msgData := make([]byte, msgLen)
	if _, err := io.ReadFull(c.transport, msgData); err != nil {
		return nil, c.transportError(err)
	}

	header, err := UnmarshalSMB2Header(msgData)
	if err != nil {
		c.logger.Warn("rejected frame: bad SMB2 header")
		return nil, err
	}

	if key, dialect := c.signer(); key != nil && header.SessionID != 0 {
		if !header.IsSigned() || !VerifySignature(msgData, key, dialect) {
			c.logger.Warn("rejected %s id=%d: bad signature", CommandName(header.Command), header.MessageID)
			return nil, fmt.Errorf("%s id %d: %w", CommandName(header.Command), header.MessageID, ErrBadSignature)
		}
	}

	if header.IsResponse() && header.CreditRequest > 0 {
		if err := c.credits.AddCredits(int64(header.CreditRequest)); err != nil {
			return nil, err
		}
		first, afterLast := c.credits.Bounds()
		c.logger.Debug("granted %d credits, window [%d, %d)", header.CreditRequest, first, afterLast)
	}

	return &SMB2Message{
		Header:  header,
		Payload: msgData[SMB2HeaderSize:],
	}, nil
}

// deadline is the earlier of the context deadline and now+timeout.
func (c *Conn) deadline(ctx context.Context, timeout time.Duration) time.Time {
	var d time.Time
	if timeout > 0 {
		d = now().Add(timeout)
	}
	if cd, ok := ctx.Deadline(); ok && (d.IsZero() || cd.Before(d)) {
		d = cd
	}
	return d
}

func (c *Conn) transportError(err error) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	return err
}

// Close closes the transport. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		if c.transport != nil {
			err = c.transport.Close()
		}
	})
	return err
}
