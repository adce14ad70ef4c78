package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/wozamali/admin-console/internal/domain"
)

// Outbound message types.
const (
	TypeRefresh     = "refresh"
	TypeLogout      = "logout"
	TypeRedirect    = "redirect"
	TypeDataChanged = "data_changed"
)

// Inbound message types sent by the console page.
const (
	TypeActivity   = "activity"
	TypeVisibility = "visibility"
)

// Message is the JSON envelope for both directions of a console socket.
type Message struct {
	Type string `json:"type"`

	// refresh
	Reason         domain.RefreshReason `json:"reason,omitempty"`
	HiddenDuration *int64               `json:"hiddenDuration,omitempty"`

	// redirect
	Location string `json:"location,omitempty"`

	// data_changed
	Channel domain.ChangeChannel `json:"channel,omitempty"`
	ID      string               `json:"id,omitempty"`

	// activity / visibility
	Kind    string `json:"kind,omitempty"`
	Visible *bool  `json:"visible,omitempty"`
}

func RefreshMessage(ev domain.RefreshEvent) Message {
	return Message{Type: TypeRefresh, Reason: ev.Reason, HiddenDuration: ev.HiddenDuration}
}

func RedirectMessage(location string) Message {
	return Message{Type: TypeRedirect, Location: location}
}

func DataChangedMessage(channel domain.ChangeChannel, id string) Message {
	return Message{Type: TypeDataChanged, Channel: channel, ID: id}
}

func encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s message: %w", msg.Type, err)
	}
	return data, nil
}

func decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("invalid console message: %w", err)
	}
	return msg, nil
}
