// broadcast/broadcast.go
package broadcast

import (
	"github.com/wfunc/typerace/logger"
	"github.com/wfunc/typerace/network"
	"github.com/wfunc/typerace/session"
)

// Dropped is notified of every frame that could not be queued.
type Dropped interface {
	IncDroppedMessages()
}

// SessionBroadcaster delivers events to live sessions by player id. It
// encodes each event once and never blocks on a slow connection.
type SessionBroadcaster struct {
	sessionManager *session.Manager
	dropped        Dropped
}

func NewSessionBroadcaster(sessionManager *session.Manager, dropped Dropped) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
		dropped:        dropped,
	}
}

// SendTo implements room.Broadcaster. Unknown ids (connections already gone)
// are skipped.
func (b *SessionBroadcaster) SendTo(playerIDs []string, event string, payload interface{}) {
	if len(playerIDs) == 0 {
		return
	}
	frame, err := network.Encode(event, payload)
	if err != nil {
		logger.Log.Errorf("Failed to encode %s: %v", event, err)
		return
	}

	for _, id := range playerIDs {
		s, ok := b.sessionManager.Get(id)
		if !ok {
			continue
		}
		if err := s.SendFrame(frame); err != nil {
			logger.Log.Warnf("Dropped %s for session %s: %v", event, id, err)
			if b.dropped != nil {
				b.dropped.IncDroppedMessages()
			}
		}
	}
}
