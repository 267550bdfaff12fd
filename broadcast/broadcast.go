// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/wordchain/logger"
	"github.com/wfunc/wordchain/session"
)

// 广播接口
type Broadcaster interface {
	BroadcastToServer(serverID string, msgID uint16, data []byte) int
	BroadcastToAll(msgID uint16, data []byte) int
}

// SubscriptionBroadcaster sends to the sessions subscribed to a server.
type SubscriptionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSubscriptionBroadcaster(sessionManager *session.Manager) *SubscriptionBroadcaster {
	return &SubscriptionBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToServer returns the number of sessions that got the message.
func (b *SubscriptionBroadcaster) BroadcastToServer(serverID string, msgID uint16, data []byte) int {
	return send(b.sessionManager.Subscribers(serverID), msgID, data)
}

func (b *SubscriptionBroadcaster) BroadcastToAll(msgID uint16, data []byte) int {
	return send(b.sessionManager.All(), msgID, data)
}

func send(sessions []*session.Session, msgID uint16, data []byte) int {
	sent := 0
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			// the read loop notices the broken connection and removes it
			logger.Log.Warnf("send to session %s failed: %v", s.GetID(), err)
			continue
		}
		sent++
	}
	return sent
}
