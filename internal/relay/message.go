// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ParkHaven Contributors

// Package relay carries virtual-queue protocol messages between the server
// processes of a park network. Delivery is best-effort publish/subscribe;
// the reconciliation loop's periodic full resync covers lost messages.
package relay

import (
	"encoding/json"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Kind identifies a protocol message.
type Kind string

const (
	// KindCreate announces a new queue; receivers register a mirror.
	KindCreate Kind = "create"
	// KindRemove deletes a queue network-wide.
	KindRemove Kind = "remove"
	// KindUpdate overwrites mirror state wholesale with the host's
	// authoritative open flag and membership.
	KindUpdate Kind = "update"
	// KindPlayer asks the host to apply a join or leave on a member's behalf.
	KindPlayer Kind = "player"
	// KindSend asks whichever process holds the member to transfer them to
	// the named server.
	KindSend Kind = "send"
	// KindNotify carries a host-authored answer to a member; whichever
	// process has them online delivers the text.
	KindNotify Kind = "notify"
)

// Message is the wire envelope for all queue protocol traffic.
type Message struct {
	// ID is unique per message, for log correlation.
	ID string `json:"id"`
	// From is the sending server; receivers ignore their own messages.
	From string `json:"from"`
	Kind Kind   `json:"kind"`

	QueueID string `json:"queue_id,omitempty"`

	// Create fields.
	Name        string `json:"name,omitempty"`
	HoldingArea int    `json:"holding_area,omitempty"`
	Server      string `json:"server,omitempty"`

	// Update fields. Members is always present on updates, even when empty,
	// so mirrors can distinguish "no members" from a partial payload.
	Open    bool     `json:"open"`
	Members []string `json:"members"`

	// Player and send fields.
	MemberID string `json:"member_id,omitempty"`
	Joining  bool   `json:"joining,omitempty"`

	// Notify field.
	Text string `json:"text,omitempty"`
}

// NewMessage creates an envelope with a fresh id.
func NewMessage(from string, kind Kind) Message {
	return Message{
		ID:      ulid.Make().String(),
		From:    from,
		Kind:    kind,
		Members: []string{},
	}
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, oops.Code("RELAY_ENCODE_FAILED").With("kind", string(m.Kind)).Wrap(err)
	}
	return data, nil
}

// Decode parses a wire payload.
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, oops.Code("RELAY_DECODE_FAILED").Wrap(err)
	}
	if m.Kind == "" {
		return Message{}, oops.Code("RELAY_DECODE_FAILED").Errorf("message has no kind")
	}
	return m, nil
}
