package network

import (
	"encoding/json"
	"errors"
	"io"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	packet, err := Marshal(MsgTypeSubmitWord, SubmitWord{ServerID: "s1", UserID: "u1", Text: "apple"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	decoded, err := Decode(packet)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.MsgID != MsgTypeSubmitWord || int(decoded.Length) != len(packet)-4 {
		t.Errorf("Unexpected header: id=%d length=%d", decoded.MsgID, decoded.Length)
	}

	var msg SubmitWord
	if err := json.Unmarshal(decoded.Data, &msg); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if msg.Text != "apple" || msg.ServerID != "s1" {
		t.Errorf("Unexpected payload: %+v", msg)
	}
}

func TestDecode_ShortFrames(t *testing.T) {
	if _, err := Decode([]byte{0, 1}); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer for a short header, got %v", err)
	}
	if _, err := Decode([]byte{0, 1, 0, 5, 'a'}); !errors.Is(err, io.ErrShortBuffer) {
		t.Errorf("Expected ErrShortBuffer for a truncated payload, got %v", err)
	}
}

func TestEncode_TooLarge(t *testing.T) {
	if _, err := Encode(MsgTypeDecision, make([]byte, 1<<16)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}
