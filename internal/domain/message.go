package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

type MessageID string

var ErrUnknownStatus = errors.New("unknown message status")

// Status is the delivery state of a message. The order is total and
// transitions are monotonic: a message never moves backwards.
type Status int

const (
	StatusSent Status = iota
	StatusDelivered
	StatusRead
)

var statusNames = map[Status]string{
	StatusSent:      "sent",
	StatusDelivered: "delivered",
	StatusRead:      "read",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func ParseStatus(raw string) (Status, error) {
	for s, name := range statusNames {
		if name == raw {
			return s, nil
		}
	}
	return StatusSent, fmt.Errorf("%w: %q", ErrUnknownStatus, raw)
}

func (s Status) MarshalJSON() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStatus, int(s))
	}
	return json.Marshal(name)
}

func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
