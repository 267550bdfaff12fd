package broadcast

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/wordchain/network"
	"github.com/wfunc/wordchain/session"
)

// MockConnection records sent message IDs.
type MockConnection struct {
	sent  []uint16
	fail  bool
	mutex sync.Mutex
}

func (m *MockConnection) Send(msgID uint16, data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.fail {
		return errors.New("connection closed")
	}
	m.sent = append(m.sent, msgID)
	return nil
}
func (m *MockConnection) Close() error                         { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                 { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)  {}
func (m *MockConnection) ReadPacket() (*network.Packet, error) { return nil, nil }

func TestSubscriptionBroadcaster(t *testing.T) {
	manager := session.NewManager()
	subscribed := &MockConnection{}
	other := &MockConnection{}
	broken := &MockConnection{fail: true}

	s1 := session.NewSession("a", subscribed)
	s1.Subscribe("s1")
	s2 := session.NewSession("b", other)
	s2.Subscribe("s2")
	s3 := session.NewSession("c", broken)
	s3.Subscribe("s1")
	manager.Add(s1)
	manager.Add(s2)
	manager.Add(s3)

	b := NewSubscriptionBroadcaster(manager)
	if sent := b.BroadcastToServer("s1", network.MsgTypeDecision, []byte("{}")); sent != 1 {
		t.Errorf("Expected 1 delivered message, got %d", sent)
	}
	if len(subscribed.sent) != 1 || len(other.sent) != 0 {
		t.Errorf("Only s1 subscribers should receive it: %v %v", subscribed.sent, other.sent)
	}

	if sent := b.BroadcastToAll(network.MsgTypeHeartbeat, nil); sent != 2 {
		t.Errorf("Expected 2 delivered messages, got %d", sent)
	}
}
