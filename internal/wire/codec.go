package wire

import (
	"encoding/json"
	"fmt"
)

// Message is any of the tagged-union variants spec.md §6 lists. Each
// variant's tag is its Go type name, matched exactly on the wire
// (externally tagged, e.g. {"Election":{"sender_id":3}}).
type Message interface {
	tag() string
}

func (Identification) tag() string    { return "Identification" }
func (Election) tag() string          { return "Election" }
func (Alive) tag() string             { return "Alive" }
func (Coordinator) tag() string       { return "Coordinator" }
func (NotifyPosition) tag() string    { return "NotifyPosition" }
func (TripRequest) tag() string       { return "TripRequest" }
func (CanHandleTrip) tag() string     { return "CanHandleTrip" }
func (CanHandleTripACK) tag() string  { return "CanHandleTripACK" }
func (Listening) tag() string         { return "Listening" }
func (TripResponse) tag() string      { return "TripResponse" }
func (AuthPayment) tag() string       { return "AuthPayment" }
func (CollectPayment) tag() string    { return "CollectPayment" }

// Encode serializes m as the single-key tagged object spec.md §6
// requires, without a trailing newline (the caller frames it).
func Encode(m Message) ([]byte, error) {
	inner, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal %s: %w", m.tag(), err)
	}
	wrapped := map[string]json.RawMessage{m.tag(): inner}
	out, err := json.Marshal(wrapped)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal envelope for %s: %w", m.tag(), err)
	}
	return out, nil
}

// Decode parses one line into the concrete Message variant it names.
// A line naming zero or more than one variant, or an unknown variant
// name, is an error; the caller logs and drops the frame rather than
// treating this as fatal (spec.md §7).
func Decode(data []byte) (Message, error) {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("wire: unmarshal envelope: %w", err)
	}
	if len(wrapped) != 1 {
		return nil, fmt.Errorf("wire: expected exactly one tagged field, got %d", len(wrapped))
	}
	var tag string
	var body json.RawMessage
	for k, v := range wrapped {
		tag, body = k, v
	}

	decodeInto := func(m Message) (Message, error) {
		if err := json.Unmarshal(body, m); err != nil {
			return nil, fmt.Errorf("wire: unmarshal %s: %w", tag, err)
		}
		return m, nil
	}

	switch tag {
	case "Identification":
		return decodeInto(&Identification{})
	case "Election":
		return decodeInto(&Election{})
	case "Alive":
		return decodeInto(&Alive{})
	case "Coordinator":
		return decodeInto(&Coordinator{})
	case "NotifyPosition":
		return decodeInto(&NotifyPosition{})
	case "TripRequest":
		return decodeInto(&TripRequest{})
	case "CanHandleTrip":
		return decodeInto(&CanHandleTrip{})
	case "CanHandleTripACK":
		return decodeInto(&CanHandleTripACK{})
	case "Listening":
		return decodeInto(&Listening{})
	case "TripResponse":
		return decodeInto(&TripResponse{})
	case "AuthPayment":
		return decodeInto(&AuthPayment{})
	case "CollectPayment":
		return decodeInto(&CollectPayment{})
	default:
		return nil, fmt.Errorf("wire: unknown message tag %q", tag)
	}
}
