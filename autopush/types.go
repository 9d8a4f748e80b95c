package autopush

// Status is the HTTP-like code AutoPush puts on every response.
type Status int

const (
	StatusOK          Status = 200
	StatusConflict    Status = 409
	StatusServerError Status = 500
)

type MessageType string

const (
	MessagePing         MessageType = "ping"
	MessageAck          MessageType = "ack"
	MessageHello        MessageType = "hello"
	MessageRegister     MessageType = "register"
	MessageUnregister   MessageType = "unregister"
	MessageNotification MessageType = "notification"
)

// Message is decoded first to route a frame by its type.
type Message struct {
	Type MessageType `json:"messageType"`
}

// HelloRequest resumes uaid and its channels, or asks for a new uaid when
// uaid is empty. The server answers with a different uaid when it has
// forgotten the old one, and the Agent then drops its channel.
type HelloRequest struct {
	Type       MessageType `json:"messageType"`
	UAID       string      `json:"uaid"`
	ChannelIDs []string    `json:"channelIDs"`
	UseWebPush bool        `json:"use_webpush,omitempty"`
}

type HelloResponse struct {
	Type       MessageType `json:"messageType"`
	UAID       string      `json:"uaid"`
	Status     Status      `json:"status"`
	UseWebPush bool        `json:"use_webpush,omitempty"`
}

// RegisterRequest opens a channel. Key is the application server key in
// standard base64, left out for unrestricted subscriptions.
type RegisterRequest struct {
	Type      MessageType `json:"messageType"`
	ChannelID string      `json:"channelID"`
	Key       string      `json:"key,omitempty"`
}

// RegisterResponse carries the endpoint the Agent hands out as its
// subscription; the device token is its last path segment.
type RegisterResponse struct {
	Type         MessageType `json:"messageType"`
	ChannelID    string      `json:"channelID"`
	Status       Status      `json:"status"`
	PushEndpoint string      `json:"pushEndpoint"`
}

type UnregisterRequest struct {
	Type      MessageType `json:"messageType"`
	ChannelID string      `json:"channelID"`
}

type UnregisterResponse struct {
	Type      MessageType `json:"messageType"`
	ChannelID string      `json:"channelID"`
	Status    Status      `json:"status"`
}

// Notification is a push as the server delivers it. Data is a single
// aes128gcm record in base64url, opened with the channel's Keys; it is
// empty for pushes without a payload.
type Notification struct {
	Type      MessageType `json:"messageType"`
	ChannelID string      `json:"channelID"`
	Version   string      `json:"version"`
	Data      string      `json:"data,omitempty"`
}

// Ack confirms delivery; unacked notifications are sent again after the
// next hello.
type Ack struct {
	Type    MessageType `json:"messageType"`
	Updates []AckUpdate `json:"updates"`
}

type AckUpdate struct {
	ChannelID string `json:"channelID"`
	Version   string `json:"version"`
}
