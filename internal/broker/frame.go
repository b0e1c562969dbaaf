package broker

import "encoding/json"

// Frame commands. Clients send SUBSCRIBE, UNSUBSCRIBE and SEND; the server
// sends CONNECTED, MESSAGE and ERROR.
const (
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
	CommandSend        = "SEND"
	CommandConnected   = "CONNECTED"
	CommandMessage     = "MESSAGE"
	CommandError       = "ERROR"
)

// TopicPrefix is the destination prefix clients may subscribe to.
const TopicPrefix = "/topic/"

// Frame is one JSON text message on the WebSocket.
type Frame struct {
	Command     string          `json:"command"`
	Destination string          `json:"destination,omitempty"`
	Body        json.RawMessage `json:"body,omitempty"`
	Session     string          `json:"session,omitempty"`
	Message     string          `json:"message,omitempty"`
}

func encodeMessage(destination string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Command: CommandMessage, Destination: destination, Body: body})
}

func encodeError(msg string) []byte {
	data, _ := json.Marshal(Frame{Command: CommandError, Message: msg})
	return data
}

func encodeConnected(clientID string) []byte {
	data, _ := json.Marshal(Frame{Command: CommandConnected, Session: clientID})
	return data
}
