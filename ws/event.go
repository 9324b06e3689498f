package ws

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// Event is the single WebSocket frame format in both directions.
//
//	{"op": "newMessage", "d": {...}, "seq": 42}
//
// Seq is stamped by the hub on outbound frames and increases monotonically
// per process; clients may use it to spot gaps but are not required to.
type Event struct {
	Op   string `json:"op"`
	Data any    `json:"d,omitempty"`
	Seq  int64  `json:"seq,omitempty"`
}

// Client → server ops.
const (
	OpHeartbeat          = "heartbeat"
	OpMarkMessagesAsSeen = "markMessagesAsSeen"
)

// Server → client ops.
const (
	OpHeartbeatAck   = "heartbeat_ack"
	OpGetOnlineUsers = "getOnlineUsers" // full online set, sent to everyone
	OpNewMessage     = "newMessage"     // live delivery to the receiver
	OpMessagesSeen   = "messagesSeen"   // read receipt to the original sender
)

// MarkSeenData is sent by a viewer: "I have seen the messages UserID sent me".
type MarkSeenData struct {
	UserID string `json:"userId"`
}

// MessagesSeenData tells a sender that UserID has seen their messages.
type MessagesSeenData struct {
	UserID string    `json:"userId"`
	SeenAt time.Time `json:"seenAt"`
}

// DecodeData converts the loosely typed Data of a decoded Event into v.
// After json.Unmarshal into Event, Data holds maps, slices and RFC 3339
// strings; field names follow the json tags of v.
func DecodeData(event Event, v any) error {
	if event.Data == nil {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           v,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		),
	})
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(event.Data); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Op, err)
	}
	return nil
}
