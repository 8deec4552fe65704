// broadcast/broadcast.go
package broadcast

import (
	"sync"

	"github.com/wfunc/guessduel/logger"
	"github.com/wfunc/guessduel/network"
)

// Subscriber is one live connection listening to a room.
type Subscriber interface {
	ID() string
	Send(data []byte) error
}

// Broadcaster pushes room-scoped events.
type Broadcaster interface {
	Publish(roomID uint, msg *network.Outbound) int
}

// Hub fans room events out to every subscriber of the room. Each delivery
// is independent: a failing subscriber is dropped without affecting the
// others.
type Hub struct {
	rooms map[uint]map[string]Subscriber
	mutex sync.RWMutex

	onDrop func()
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[uint]map[string]Subscriber)}
}

// OnDrop registers a hook called for every failed delivery.
func (h *Hub) OnDrop(fn func()) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onDrop = fn
}

func (h *Hub) Join(roomID uint, sub Subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]Subscriber)
		h.rooms[roomID] = members
	}
	members[sub.ID()] = sub
}

func (h *Hub) Leave(roomID uint, subID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, subID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// Publish encodes msg once and delivers it to the room. It returns the
// number of successful deliveries.
func (h *Hub) Publish(roomID uint, msg *network.Outbound) int {
	data, err := network.Encode(msg)
	if err != nil {
		logger.Log.Errorf("Encode %s for room %d: %v", msg.Type, roomID, err)
		return 0
	}
	return h.deliver(roomID, data)
}

// deliver sends data to a snapshot of the room's subscribers. A subscriber
// whose Send fails is removed.
func (h *Hub) deliver(roomID uint, data []byte) int {
	h.mutex.RLock()
	subs := make([]Subscriber, 0, len(h.rooms[roomID]))
	for _, s := range h.rooms[roomID] {
		subs = append(subs, s)
	}
	onDrop := h.onDrop
	h.mutex.RUnlock()

	delivered := 0
	for _, s := range subs {
		if err := s.Send(data); err != nil {
			logger.Log.Warnf("Dropping subscriber %s of room %d: %v", s.ID(), roomID, err)
			h.Leave(roomID, s.ID())
			if onDrop != nil {
				onDrop()
			}
			continue
		}
		delivered++
	}
	return delivered
}

// Members returns how many subscribers listen to roomID.
func (h *Hub) Members(roomID uint) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[roomID])
}

// Rooms returns how many rooms have at least one subscriber.
func (h *Hub) Rooms() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms)
}
