package protocol

import (
	"encoding/binary"
	"fmt"
)

// Codec errors. Unknown tags are data errors (the peer sent garbage);
// ErrStringTooLong is an encoding error (the caller passed an oversized
// field).
var ErrStringTooLong = fmt.Errorf("string exceeds its field width")

// Frame field offsets, all relative to the start of the 48-byte frame. The
// outer tag is a big-endian uint32 at offset 0; every payload field is
// fixed-width and starts right after it.
const (
	tagWidth     = 4
	dateOffset   = tagWidth
	authorOffset = dateOffset + 8
	bodyOffset   = authorOffset + UsernameMaxLength
)

func putString0(frame []byte, offset, max int, value string) error {
	if len(value) > max {
		return ErrStringTooLong
	}
	field := frame[offset : offset+max]
	for i := range field {
		field[i] = 0
	}
	copy(field, value)
	return nil
}

// getString0 reads a zero-padded field: the string ends at the first zero
// byte, or at the field's declared width if none.
func getString0(frame []byte, offset, max int) string {
	field := frame[offset : offset+max]
	for i, c := range field {
		if c == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

// EncodeClientPacket encodes a client-to-server message into a fresh
// 48-byte frame.
func EncodeClientPacket(packet *ClientPacket) ([]byte, error) {
	frame := make([]byte, FrameSize)
	binary.BigEndian.PutUint32(frame, uint32(packet.Type))

	switch packet.Type {
	case JoinAs, SubscribeTo, UnsubscribeFrom:
		if err := putString0(frame, tagWidth, UsernameMaxLength, packet.Name); err != nil {
			return nil, err
		}
	case ListSubscriptions:
		// no payload
	case Publish:
		if err := putString0(frame, tagWidth, MessageMaxLength, string(packet.Body)); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown client packet type %d", packet.Type)
	}

	return frame, nil
}

// DecodeClientPacket decodes a 48-byte frame received from a client.
func DecodeClientPacket(frame []byte) (*ClientPacket, error) {
	if len(frame) != FrameSize {
		return nil, fmt.Errorf("frame is %d bytes, expected %d", len(frame), FrameSize)
	}

	packet := &ClientPacket{Type: ClientPacketType(binary.BigEndian.Uint32(frame))}

	switch packet.Type {
	case JoinAs, SubscribeTo, UnsubscribeFrom:
		packet.Name = getString0(frame, tagWidth, UsernameMaxLength)
	case ListSubscriptions:
	case Publish:
		packet.Body = []byte(getString0(frame, tagWidth, MessageMaxLength))
	default:
		return nil, fmt.Errorf("unknown client packet tag %d", uint32(packet.Type))
	}

	return packet, nil
}

// EncodeServerPacket encodes a server-to-client message into a fresh
// 48-byte frame.
func EncodeServerPacket(packet *ServerPacket) ([]byte, error) {
	frame := make([]byte, FrameSize)
	binary.BigEndian.PutUint32(frame, uint32(packet.Type))

	switch packet.Type {
	case LoginStatus:
		binary.BigEndian.PutUint32(frame[tagWidth:], uint32(packet.Login))
	case SubscribeResult:
		binary.BigEndian.PutUint32(frame[tagWidth:], uint32(packet.Result))
	case Kick:
		binary.BigEndian.PutUint32(frame[tagWidth:], uint32(packet.Reason))
	case ReceivedMessage:
		binary.BigEndian.PutUint64(frame[dateOffset:], uint64(packet.Message.Date))
		if err := putString0(frame, authorOffset, UsernameMaxLength, packet.Message.Author); err != nil {
			return nil, err
		}
		if err := putString0(frame, bodyOffset, MessageMaxLength, string(packet.Message.Body)); err != nil {
			return nil, err
		}
	case SubscriptionEntry:
		if err := putString0(frame, tagWidth, UsernameMaxLength, packet.Entry); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown server packet type %d", packet.Type)
	}

	return frame, nil
}

// DecodeServerPacket decodes a 48-byte frame received from the server.
func DecodeServerPacket(frame []byte) (*ServerPacket, error) {
	if len(frame) != FrameSize {
		return nil, fmt.Errorf("frame is %d bytes, expected %d", len(frame), FrameSize)
	}

	packet := &ServerPacket{Type: ServerPacketType(binary.BigEndian.Uint32(frame))}
	nested := binary.BigEndian.Uint32(frame[tagWidth:])

	switch packet.Type {
	case LoginStatus:
		if nested > uint32(LoginIllegalName) {
			return nil, fmt.Errorf("unknown login status %d", nested)
		}
		packet.Login = LoginStatusCode(nested)
	case SubscribeResult:
		if nested > uint32(SubscribeUnchanged) {
			return nil, fmt.Errorf("unknown subscribe result %d", nested)
		}
		packet.Result = SubscribeResultCode(nested)
	case Kick:
		if nested > uint32(KickProtocolError) {
			return nil, fmt.Errorf("unknown kick reason %d", nested)
		}
		packet.Reason = KickReason(nested)
	case ReceivedMessage:
		packet.Message = Message{
			Date:   int64(binary.BigEndian.Uint64(frame[dateOffset:])),
			Author: getString0(frame, authorOffset, UsernameMaxLength),
			Body:   []byte(getString0(frame, bodyOffset, MessageMaxLength)),
		}
	case SubscriptionEntry:
		packet.Entry = getString0(frame, tagWidth, UsernameMaxLength)
	default:
		return nil, fmt.Errorf("unknown server packet tag %d", uint32(packet.Type))
	}

	return packet, nil
}
