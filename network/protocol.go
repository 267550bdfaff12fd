package network

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math"
)

const (
	MsgTypeHeartbeat   = 1
	MsgTypeSubscribe   = 101
	MsgTypeUnsubscribe = 102
	MsgTypeSubmitWord  = 201
	MsgTypeCheckWord   = 202
	MsgTypeDecision    = 301
	MsgTypeCheckResult = 302
	MsgTypeError       = 500
)

var ErrPayloadTooLarge = errors.New("payload too large")

// Subscribe asks for the decisions of the given servers.
type Subscribe struct {
	ServerIDs []string `json:"server_ids"`
}

// SubmitWord relays one chat message from a bridge.
type SubmitWord struct {
	ServerID      string `json:"server_id"`
	ChannelID     string `json:"channel_id"`
	UserID        string `json:"user_id"`
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type CheckWord struct {
	ServerID      string `json:"server_id"`
	Text          string `json:"text"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Decision is sent back to the submitting session and broadcast to the
// sessions subscribed to the server.
type Decision struct {
	CorrelationID string          `json:"correlation_id"`
	ServerID      string          `json:"server_id"`
	ChannelID     string          `json:"channel_id"`
	UserID        string          `json:"user_id"`
	Outcome       string          `json:"outcome"`
	Reason        string          `json:"reason,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
}

type CheckResult struct {
	CorrelationID string          `json:"correlation_id"`
	ServerID      string          `json:"server_id"`
	Result        json.RawMessage `json:"result"`
}

type Error struct {
	CorrelationID string `json:"correlation_id,omitempty"`
	Message       string `json:"message"`
}

// Encode frames a payload: 2 bytes message ID, 2 bytes length, then data.
func Encode(msgID uint16, data []byte) ([]byte, error) {
	if len(data) > math.MaxUint16 {
		return nil, ErrPayloadTooLarge
	}
	packet := make([]byte, 4+len(data))
	binary.BigEndian.PutUint16(packet[0:2], msgID)
	binary.BigEndian.PutUint16(packet[2:4], uint16(len(data)))
	copy(packet[4:], data)
	return packet, nil
}

// Decode parses a frame produced by Encode.
func Decode(data []byte) (*Packet, error) {
	if len(data) < 4 {
		return nil, io.ErrShortBuffer
	}

	msgID := binary.BigEndian.Uint16(data[0:2])
	length := binary.BigEndian.Uint16(data[2:4])

	if len(data) < int(4+length) {
		return nil, io.ErrShortBuffer
	}

	return &Packet{
		MsgID:  msgID,
		Length: length,
		Data:   data[4 : 4+length],
	}, nil
}

// Marshal encodes v as JSON and frames it.
func Marshal(msgID uint16, v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Encode(msgID, data)
}
