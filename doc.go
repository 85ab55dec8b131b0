// Package smbauth provides the security-negotiation core of an SMB2
// connection: a DER TLV codec for SPNEGO blobs, the NTLM
// Negotiate/Challenge/Authenticate message codec carried inside them, and the
// credit window that decides which message ids a connection may use.
//
// # Overview
//
// The mechanism layer that picks tokens and drives the handshake is not part
// of this package. It builds NTLM messages with a Conn, wraps them as DER
// values with a Buffer, and sends them once the Conn has issued a message id.
// Received blobs go the other way: a View unwraps them and the Conn validates
// the NTLM record.
//
// # DER
//
// Only short-form lengths (0-127) are supported; longer values are rejected
// with ErrUnsupportedLongLength, never truncated.
//
//	buf := smbauth.NewBuffer()
//	mechs := smbauth.NewBuffer()
//	mechs.AddEncodedOid("1.3.6.1.4.1.311.2.2.10")
//	buf.AddSequence(mechs)
//
//	values, err := smbauth.DecodeAll(smbauth.NewView(buf.Bytes()))
//
// A View holds its own copy of the bytes it was made from, so values decoded
// from it stay valid whatever happens to the source buffer.
//
// AddOid writes the dotted text as a GeneralString, which is what existing
// peers of this code expect. AddEncodedOid writes a real OBJECT IDENTIFIER.
//
// # NTLM
//
//	client, _ := smbauth.NewConn(nil, nil)
//	server, _ := smbauth.NewConn(nil, &smbauth.Config{TargetName: "FILESRV"})
//
//	neg := client.MakeNegotiate()
//	server.TakeNegotiate(neg)
//	chal, _ := server.MakeChallenge()
//	client.TakeChallenge(chal)
//	auth, _ := client.MakeAuthenticateWithCredentials(smbauth.ParseCredentials(`CORP\jdoe`, "secret"))
//	msg, _ := server.TakeAuthenticate(auth)
//	key, err := server.VerifyAuthenticate(msg, "secret")
//
// Take operations check the record size, then the signature, then the message
// type. Variable fields are only read through VarField.ReadFrom, which rejects
// offsets past the end of the message.
//
// # Credits
//
// Every send consumes message ids from the front of the window and every
// response grants more at the back. An empty window returns ErrOutOfCredits,
// which is backpressure rather than failure:
//
//	id, err := conn.AcquireMessageID(ctx)
//	if smbauth.IsBackpressure(err) {
//	    // wait for the peer to grant credits
//	}
//
// # Signing
//
// Once both sides hold the session key, EnableSigning derives the signing key
// for the negotiated dialect. Frames with a session id are then signed on
// send, and Receive rejects them with ErrBadSignature if the signature is
// missing or wrong.
//
// # Errors
//
// All failures are returned as errors wrapping the exported sentinels, so
// errors.Is works through DecodeError and fmt wrapping. IsHostileInput
// reports errors caused by malformed peer data.
package smbauth
