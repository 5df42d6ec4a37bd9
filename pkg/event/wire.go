package event

import "encoding/json"

// Protocol frame types that are not domain events. Domain events go over
// the wire flat (see Event.MarshalJSON); everything else is a Frame with
// a data object.
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FramePing        = "ping"

	FrameConnected           = "connected"
	FrameSubscribed          = "subscribed"
	FrameUnsubscribed        = "unsubscribed"
	FrameError               = "error"
	FramePong                = "pong"
	FrameUnreadNotifications = "unread_notifications"
)

// InboundFrame is a client→server message.
type InboundFrame struct {
	Type    string          `json:"type"`
	Channel json.RawMessage `json:"channel,omitempty"`
}

// OutboundFrame is a server→client protocol message.
type OutboundFrame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ErrorData is the payload of an error frame. Channel echoes the
// requested channel on access-denied responses.
type ErrorData struct {
	Message string `json:"message"`
	Channel any    `json:"channel,omitempty"`
}

// ConnectedData acknowledges a successful connection handshake.
type ConnectedData struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// SubscribedData acknowledges a subscribe or unsubscribe.
type SubscribedData struct {
	Channel    any    `json:"channel"`
	ChannelKey string `json:"channelKey"`
}

// UnreadData delivers the persisted unread backlog on
// notifications-channel subscribe.
type UnreadData struct {
	Notifications []json.RawMessage `json:"notifications"`
	Count         int               `json:"count"`
}
