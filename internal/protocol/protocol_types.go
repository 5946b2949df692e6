// Package protocol implements the twiiiiter wire protocol: fixed 48-byte
// frames carrying one tagged message each, client to server or server to
// client. The codec is pure; callers own the framing (read and write exactly
// FrameSize bytes per message).
package protocol

// Protocol constants. Usernames and message bodies are raw byte strings,
// left-justified in their field and padded with zero bytes.
const (
	FrameSize         = 48
	UsernameMaxLength = 6
	MessageMaxLength  = 20
)

// ClientPacketType tags a client-to-server frame.
type ClientPacketType uint32

const (
	JoinAs ClientPacketType = iota
	SubscribeTo
	UnsubscribeFrom
	ListSubscriptions
	Publish
)

var clientPacketTypeMap = map[ClientPacketType]string{
	JoinAs:            "JOIN_AS",
	SubscribeTo:       "SUBSCRIBE_TO",
	UnsubscribeFrom:   "UNSUBSCRIBE_FROM",
	ListSubscriptions: "LIST_SUBSCRIPTIONS",
	Publish:           "PUBLISH",
}

func (packetType ClientPacketType) String() string {
	return clientPacketTypeMap[packetType]
}

// ServerPacketType tags a server-to-client frame.
type ServerPacketType uint32

const (
	LoginStatus ServerPacketType = iota
	ReceivedMessage
	SubscribeResult
	SubscriptionEntry
	Kick
)

var serverPacketTypeMap = map[ServerPacketType]string{
	LoginStatus:       "LOGIN_STATUS",
	ReceivedMessage:   "RECEIVED_MESSAGE",
	SubscribeResult:   "SUBSCRIBE_RESULT",
	SubscriptionEntry: "SUBSCRIPTION_ENTRY",
	Kick:              "KICK",
}

func (packetType ServerPacketType) String() string {
	return serverPacketTypeMap[packetType]
}

// LoginStatusCode is the nested tag of a LOGIN_STATUS frame.
type LoginStatusCode uint32

const (
	LoginOk LoginStatusCode = iota
	LoginAlreadyUsed
	LoginIllegalName
)

// SubscribeResultCode is the nested tag of a SUBSCRIBE_RESULT frame,
// answering both SUBSCRIBE_TO and UNSUBSCRIBE_FROM.
type SubscribeResultCode uint32

const (
	SubscribeOk SubscribeResultCode = iota
	SubscribeNotFound
	SubscribeUnchanged
)

// KickReason is the nested tag of a KICK frame.
type KickReason uint32

const (
	KickClosing KickReason = iota
	KickProtocolError
)

// Message is one published message as carried by a RECEIVED_MESSAGE frame.
// Date is microseconds since the Unix epoch.
type Message struct {
	Date   int64
	Author string
	Body   []byte
}

// ClientPacket is a decoded client-to-server frame. Name is set for JOIN_AS,
// SUBSCRIBE_TO and UNSUBSCRIBE_FROM; Body for PUBLISH.
type ClientPacket struct {
	Type ClientPacketType
	Name string
	Body []byte
}

// ServerPacket is a decoded server-to-client frame. Exactly one payload
// field is meaningful, selected by Type.
type ServerPacket struct {
	Type    ServerPacketType
	Login   LoginStatusCode
	Result  SubscribeResultCode
	Reason  KickReason
	Message Message
	Entry   string
}
