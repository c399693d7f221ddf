package schedule

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type (
	Recipient struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	// Message is the ephemeral value passed from the resolve step to the send
	// step across the task-queue boundary. It must survive a
	// serialize/deserialize round trip unchanged.
	Message struct {
		ID        string                 `json:"id"`
		Type      MessageType            `json:"type"`
		Name      string                 `json:"name"`
		Recipient Recipient              `json:"recipient"`
		Language  string                 `json:"language"`
		Context   map[string]interface{} `json:"context"`
	}
)

// NewMessage personalizes a message of the given type for one recipient.
// name distinguishes variants of a type, e.g. "recurringnudge_day3".
func NewMessage(mt MessageType, name string, rcpt Recipient, language string, context map[string]interface{}) Message {
	return Message{
		ID:        uuid.New().String(),
		Type:      mt,
		Name:      name,
		Recipient: rcpt,
		Language:  language,
		Context:   context,
	}
}

// NudgeName names a recurring-nudge variant by the number of days since the
// learner's schedule started.
func NudgeName(dayOffset int) string {
	if dayOffset < 0 {
		dayOffset = -dayOffset
	}
	return fmt.Sprintf("recurringnudge_day%d", dayOffset)
}

func (m Message) Serialize() (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", errors.Wrap(err, "serializing message")
	}
	return string(b), nil
}

// DeserializeMessage is the inverse of Serialize. Numbers decode as
// json.Number, so context values built as json.Number come back unchanged.
func DeserializeMessage(s string) (Message, error) {
	var m Message
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return Message{}, errors.Wrap(err, "deserializing message")
	}
	return m, nil
}
