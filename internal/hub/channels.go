package hub

import (
	"bytes"
	"encoding/json"
)

// encode builds the wire format: the message type, a newline, then the json payload.
func encode(messageType string, payload any) (string, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	buf.Grow(len(messageType) + 1 + len(jsonBytes))
	buf.WriteString(messageType)
	buf.WriteByte('\n')
	buf.Write(jsonBytes)

	return buf.String(), nil
}

// Emit sends an event to everyone subscribed to the server or channel.
func Emit(messageType string, kind string, id int64, payload any) error {
	channel := topic(kind, id)

	message, err := encode(messageType, payload)
	if err != nil {
		return err
	}

	sugar.Debugf("Sending %s to those on %s", messageType, channel)

	if selfContained {
		localPubSub.Publish(channel, message)
		return nil
	}

	return redisClient.Publish(redisCtx, channel, message).Err()
}
