package chat

import "sync"

// Conn is the minimal surface the registry needs from a live socket.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Registry tracks which live connections belong to which conversation room
// and which single notification connection belongs to which user. Connections
// are served by per-socket goroutines, so the maps are the one shared mutable
// resource in the chat layer and every access holds the lock.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string][]Conn
	users map[string]Conn
}

// NewRegistry constructs an empty Registry. One instance is created at server
// start and injected into the socket handlers.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string][]Conn),
		users: make(map[string]Conn),
	}
}

// Join registers a connection under a conversation room. Connections receive
// broadcasts in join order.
func (r *Registry) Join(room string, conn Conn) {
	if room == "" || conn == nil {
		return
	}
	r.mu.Lock()
	r.rooms[room] = append(r.rooms[room], conn)
	r.mu.Unlock()
}

// Leave removes a connection from a room; when the room's connection list
// becomes empty the room entry itself is removed.
func (r *Registry) Leave(room string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := r.rooms[room]
	for i, existing := range conns {
		if existing == conn {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(r.rooms, room)
		return
	}
	r.rooms[room] = conns
}

// Broadcast delivers the payload to every connection in the room, in
// registration order, best effort. A connection whose send fails is dropped
// from the room and closed; the failure never propagates to the sender.
// Returns the number of successful deliveries.
func (r *Registry) Broadcast(room string, payload interface{}) int {
	r.mu.RLock()
	conns := append([]Conn(nil), r.rooms[room]...)
	r.mu.RUnlock()

	delivered := 0
	for _, conn := range conns {
		if err := conn.WriteJSON(payload); err != nil {
			r.Leave(room, conn)
			_ = conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// Attach registers a user's single live notification connection, replacing
// and closing any previous one.
func (r *Registry) Attach(userID string, conn Conn) {
	if userID == "" || conn == nil {
		return
	}
	r.mu.Lock()
	previous := r.users[userID]
	r.users[userID] = conn
	r.mu.Unlock()
	if previous != nil && previous != conn {
		_ = previous.Close()
	}
}

// Detach removes the user's notification connection, but only if it is still
// the one provided (a newer connection may have replaced it).
func (r *Registry) Detach(userID string, conn Conn) {
	r.mu.Lock()
	if r.users[userID] == conn {
		delete(r.users, userID)
	}
	r.mu.Unlock()
}

// Notify delivers the payload to the user's notification connection if one
// is live; otherwise it is a silent no-op. There is no offline queueing.
func (r *Registry) Notify(userID string, payload interface{}) bool {
	r.mu.RLock()
	conn := r.users[userID]
	r.mu.RUnlock()
	if conn == nil {
		return false
	}
	if err := conn.WriteJSON(payload); err != nil {
		r.Detach(userID, conn)
		_ = conn.Close()
		return false
	}
	return true
}

// Online reports whether the user has a live notification connection.
func (r *Registry) Online(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.users[userID] != nil
}

// RoomSize reports the number of live connections in a room.
func (r *Registry) RoomSize(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[room])
}
