package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestClientPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet ClientPacket
	}{
		{"join", ClientPacket{Type: JoinAs, Name: "Edgar"}},
		{"join longest name", ClientPacket{Type: JoinAs, Name: "Matteo"}},
		{"subscribe", ClientPacket{Type: SubscribeTo, Name: "Alice"}},
		{"unsubscribe", ClientPacket{Type: UnsubscribeFrom, Name: "Bob"}},
		{"list", ClientPacket{Type: ListSubscriptions}},
		{"publish", ClientPacket{Type: Publish, Body: []byte("Hello world!")}},
		{"publish longest body", ClientPacket{Type: Publish, Body: []byte("Hello world! padding")}},
	}

	for _, tt := range tests {
		frame, err := EncodeClientPacket(&tt.packet)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", tt.name, err)
		}
		if len(frame) != FrameSize {
			t.Fatalf("%s: frame is %d bytes", tt.name, len(frame))
		}
		decoded, err := DecodeClientPacket(frame)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", tt.name, err)
		}
		if decoded.Type != tt.packet.Type || decoded.Name != tt.packet.Name {
			t.Errorf("%s: expected %+v, got %+v", tt.name, tt.packet, *decoded)
		}
		if !bytes.Equal(decoded.Body, tt.packet.Body) {
			t.Errorf("%s: expected body %q, got %q", tt.name, tt.packet.Body, decoded.Body)
		}
	}
}

func TestServerPacketRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		packet ServerPacket
	}{
		{"login ok", ServerPacket{Type: LoginStatus, Login: LoginOk}},
		{"login already used", ServerPacket{Type: LoginStatus, Login: LoginAlreadyUsed}},
		{"login illegal name", ServerPacket{Type: LoginStatus, Login: LoginIllegalName}},
		{"subscribe ok", ServerPacket{Type: SubscribeResult, Result: SubscribeOk}},
		{"subscribe not found", ServerPacket{Type: SubscribeResult, Result: SubscribeNotFound}},
		{"subscribe unchanged", ServerPacket{Type: SubscribeResult, Result: SubscribeUnchanged}},
		{"entry", ServerPacket{Type: SubscriptionEntry, Entry: "Alice"}},
		{"entry sentinel", ServerPacket{Type: SubscriptionEntry, Entry: ""}},
		{"kick closing", ServerPacket{Type: Kick, Reason: KickClosing}},
		{"kick protocol error", ServerPacket{Type: Kick, Reason: KickProtocolError}},
		{"message", ServerPacket{Type: ReceivedMessage, Message: Message{
			Date:   1693826413_000042,
			Author: "Alice",
			Body:   []byte("Hi Bob!"),
		}}},
	}

	for _, tt := range tests {
		frame, err := EncodeServerPacket(&tt.packet)
		if err != nil {
			t.Fatalf("%s: encode failed: %v", tt.name, err)
		}
		decoded, err := DecodeServerPacket(frame)
		if err != nil {
			t.Fatalf("%s: decode failed: %v", tt.name, err)
		}
		if decoded.Type != tt.packet.Type ||
			decoded.Login != tt.packet.Login ||
			decoded.Result != tt.packet.Result ||
			decoded.Reason != tt.packet.Reason ||
			decoded.Entry != tt.packet.Entry {
			t.Errorf("%s: expected %+v, got %+v", tt.name, tt.packet, *decoded)
		}
		if decoded.Message.Date != tt.packet.Message.Date ||
			decoded.Message.Author != tt.packet.Message.Author ||
			!bytes.Equal(decoded.Message.Body, tt.packet.Message.Body) {
			t.Errorf("%s: expected message %+v, got %+v", tt.name, tt.packet.Message, decoded.Message)
		}
	}
}

// A 20-byte body must survive encoding byte for byte: the field has no
// terminator when fully occupied.
func TestPublishLongestBodyBytes(t *testing.T) {
	body := []byte("12345678901234567890")
	frame, err := EncodeClientPacket(&ClientPacket{Type: Publish, Body: body})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(frame[4:24], body) {
		t.Errorf("expected %q in frame, got %q", body, frame[4:24])
	}
	decoded, err := DecodeClientPacket(frame)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !bytes.Equal(decoded.Body, body) {
		t.Errorf("expected %q, got %q", body, decoded.Body)
	}
}

func TestEncodeTooLong(t *testing.T) {
	tests := []struct {
		name   string
		packet ClientPacket
	}{
		{"name too long", ClientPacket{Type: JoinAs, Name: "Superlong"}},
		{"body too long", ClientPacket{Type: Publish, Body: []byte("123456789012345678901")}},
	}

	for _, tt := range tests {
		if _, err := EncodeClientPacket(&tt.packet); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	frame := make([]byte, FrameSize)

	binary.BigEndian.PutUint32(frame, 5)
	if _, err := DecodeClientPacket(frame); err == nil {
		t.Error("expected an error for unknown client tag")
	}
	if _, err := DecodeServerPacket(frame); err == nil {
		t.Error("expected an error for unknown server tag")
	}

	// valid outer tag, invalid nested tag
	binary.BigEndian.PutUint32(frame, uint32(LoginStatus))
	binary.BigEndian.PutUint32(frame[4:], 3)
	if _, err := DecodeServerPacket(frame); err == nil {
		t.Error("expected an error for unknown login status")
	}
	binary.BigEndian.PutUint32(frame, uint32(Kick))
	binary.BigEndian.PutUint32(frame[4:], 2)
	if _, err := DecodeServerPacket(frame); err == nil {
		t.Error("expected an error for unknown kick reason")
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	if _, err := DecodeClientPacket(make([]byte, 47)); err == nil {
		t.Error("expected an error for a short frame")
	}
	if _, err := DecodeServerPacket(make([]byte, 49)); err == nil {
		t.Error("expected an error for an oversized frame")
	}
}
