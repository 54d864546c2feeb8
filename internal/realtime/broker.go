// Package realtime implements the chat room broker and its websocket transport.
package realtime

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"homelet/api/internal/auth"
	"homelet/api/internal/models"
	"homelet/api/internal/repository"
)

// DropReason names why a realtime operation had no effect.
type DropReason string

const (
	ReasonUnknownChat    DropReason = "unknown_chat"
	ReasonNotParticipant DropReason = "not_participant"
	ReasonEmptyContent   DropReason = "empty_content"
	ReasonNotJoined      DropReason = "not_joined"
	ReasonRateLimited    DropReason = "rate_limited"
	ReasonPersistFailed  DropReason = "persist_failed"
	ReasonClosed         DropReason = "closed"
	ReasonInvalidFrame   DropReason = "invalid_frame"
)

// Outcome is the result of a broker operation. A zero Reason means it took effect.
// Err is set only for ReasonPersistFailed.
type Outcome struct {
	Message *models.Message
	Reason  DropReason
	Err     error
}

// Dropped reports whether the operation had no effect.
func (o Outcome) Dropped() bool {
	return o.Reason != ""
}

func dropped(reason DropReason) Outcome {
	return Outcome{Reason: reason}
}

// Options tunes per-connection resources.
type Options struct {
	SendBuffer        int
	MessagesPerSecond float64
	MessageBurst      int
}

// Stats is a snapshot of broker counters.
type Stats struct {
	Connections    int                  `json:"connections"`
	Rooms          int                  `json:"rooms"`
	Published      int64                `json:"published"`
	Dropped        map[DropReason]int64 `json:"dropped"`
	QueueOverflows int64                `json:"queue_overflows"`
}

// Broker owns room membership and fans chat events out to connections.
// Each chat has a sequencer lock held across persist and enqueue, so every
// subscriber sees a chat's messages in persistence order.
type Broker struct {
	chats    repository.ChatStore
	messages repository.MessageStore
	opts     Options
	now      func() time.Time

	mu     sync.RWMutex
	conns  map[string]*Conn
	rooms  map[int64]map[string]*Conn
	joined map[string]map[int64]struct{}

	sequencers sync.Map // chat id -> *sync.Mutex

	statsMu   sync.Mutex
	published int64
	drops     map[DropReason]int64
	overflows int64
}

// NewBroker creates a Broker backed by the given stores.
func NewBroker(chats repository.ChatStore, messages repository.MessageStore, opts Options) *Broker {
	return &Broker{
		chats:    chats,
		messages: messages,
		opts:     opts,
		now:      func() time.Time { return time.Now().UTC() },
		conns:    map[string]*Conn{},
		rooms:    map[int64]map[string]*Conn{},
		joined:   map[string]map[int64]struct{}{},
		drops:    map[DropReason]int64{},
	}
}

// Register admits an authenticated principal and returns its connection handle.
func (b *Broker) Register(p auth.Principal) *Conn {
	var limiter *rate.Limiter
	if b.opts.MessagesPerSecond > 0 {
		burst := b.opts.MessageBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(b.opts.MessagesPerSecond), burst)
	}
	c := newConn(p, b.opts.SendBuffer, limiter)

	b.mu.Lock()
	b.conns[c.ID] = c
	b.joined[c.ID] = map[int64]struct{}{}
	b.mu.Unlock()
	return c
}

// Unregister removes the connection from every room and closes its outbound queue.
// It is safe to call more than once.
func (b *Broker) Unregister(c *Conn) {
	b.mu.Lock()
	for chatID := range b.joined[c.ID] {
		b.removeFromRoomLocked(chatID, c.ID)
	}
	delete(b.joined, c.ID)
	delete(b.conns, c.ID)
	b.mu.Unlock()
	c.close()
}

// Close unregisters every connection.
func (b *Broker) Close() {
	b.mu.RLock()
	conns := lo.Values(b.conns)
	b.mu.RUnlock()
	for _, c := range conns {
		b.Unregister(c)
	}
}

func (b *Broker) removeFromRoomLocked(chatID int64, connID string) {
	room := b.rooms[chatID]
	delete(room, connID)
	if len(room) == 0 {
		delete(b.rooms, chatID)
	}
}

// participantChat resolves chatID and checks p is one of its participants.
func (b *Broker) participantChat(ctx context.Context, p auth.Principal, chatID int64) (*models.Chat, Outcome) {
	chat, err := b.chats.FindByID(ctx, chatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, dropped(ReasonUnknownChat)
		}
		return nil, Outcome{Reason: ReasonPersistFailed, Err: err}
	}
	if !chat.HasParticipant(p.ID) {
		return nil, dropped(ReasonNotParticipant)
	}
	return chat, Outcome{}
}

// Join subscribes c to the chat's room if its principal is a participant.
// Unknown chats and non-participants are both denied.
func (b *Broker) Join(ctx context.Context, c *Conn, chatID int64) Outcome {
	if _, out := b.participantChat(ctx, c.Principal, chatID); out.Dropped() {
		return b.record(c.Principal, chatID, out)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	rooms, ok := b.joined[c.ID]
	if !ok {
		return b.record(c.Principal, chatID, dropped(ReasonClosed))
	}
	room := b.rooms[chatID]
	if room == nil {
		room = map[string]*Conn{}
		b.rooms[chatID] = room
	}
	room[c.ID] = c
	rooms[chatID] = struct{}{}
	return Outcome{}
}

// Leave unsubscribes c from one room.
func (b *Broker) Leave(c *Conn, chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rooms, ok := b.joined[c.ID]; ok {
		delete(rooms, chatID)
	}
	b.removeFromRoomLocked(chatID, c.ID)
}

// Publish validates, persists and fans out a message on behalf of p.
// Participancy is checked on every call, independently of room membership.
func (b *Broker) Publish(ctx context.Context, p auth.Principal, chatID int64, content string) Outcome {
	if _, out := b.participantChat(ctx, p, chatID); out.Dropped() {
		return b.record(p, chatID, out)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return b.record(p, chatID, dropped(ReasonEmptyContent))
	}

	seq := b.sequencer(chatID)
	seq.Lock()
	defer seq.Unlock()

	msg, err := b.messages.Append(ctx, &models.Message{
		ChatID:   chatID,
		SenderID: p.ID,
		Content:  content,
		SentAt:   b.now(),
	})
	if err != nil {
		return b.record(p, chatID, Outcome{Reason: ReasonPersistFailed, Err: err})
	}

	frame, err := messageNewFrame(msg)
	if err != nil {
		log.Printf("realtime: failed to encode message %d: %v", msg.ID, err)
	} else {
		b.fanOut(chatID, frame, "")
	}

	b.statsMu.Lock()
	b.published++
	b.statsMu.Unlock()
	return Outcome{Message: msg}
}

// PublishFrom is Publish for a live connection, subject to its rate limit.
func (b *Broker) PublishFrom(ctx context.Context, c *Conn, chatID int64, content string) Outcome {
	if !c.allow() {
		return b.record(c.Principal, chatID, dropped(ReasonRateLimited))
	}
	return b.Publish(ctx, c.Principal, chatID, content)
}

// PublishTyping relays a typing signal to the other connections in the room.
// Only room membership is checked; nothing is persisted.
func (b *Broker) PublishTyping(c *Conn, chatID int64, isTyping bool) Outcome {
	b.mu.RLock()
	_, member := b.joined[c.ID][chatID]
	b.mu.RUnlock()
	if !member {
		return b.record(c.Principal, chatID, dropped(ReasonNotJoined))
	}

	frame, err := encodeFrame(FrameTyping, TypingBroadcastPayload{ChatID: chatID, UserID: c.Principal.ID, IsTyping: isTyping})
	if err != nil {
		return dropped(ReasonInvalidFrame)
	}
	b.fanOut(chatID, frame, c.ID)
	return Outcome{}
}

// RejectFrame records a frame that could not be decoded.
func (b *Broker) RejectFrame(c *Conn) Outcome {
	return b.record(c.Principal, 0, dropped(ReasonInvalidFrame))
}

// fanOut queues frame on every room member except skipConnID. A full queue
// drops the frame for that member only.
func (b *Broker) fanOut(chatID int64, frame []byte, skipConnID string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, c := range b.rooms[chatID] {
		if id == skipConnID {
			continue
		}
		if !c.enqueue(frame) {
			b.statsMu.Lock()
			b.overflows++
			b.statsMu.Unlock()
			log.Printf("realtime: outbound queue full for connection %s (user %d), frame dropped", c.ID, c.Principal.ID)
		}
	}
}

func (b *Broker) sequencer(chatID int64) *sync.Mutex {
	m, _ := b.sequencers.LoadOrStore(chatID, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func (b *Broker) record(p auth.Principal, chatID int64, out Outcome) Outcome {
	b.statsMu.Lock()
	b.drops[out.Reason]++
	b.statsMu.Unlock()
	if out.Err != nil {
		log.Printf("realtime: dropped (%s) user %d chat %d: %v", out.Reason, p.ID, chatID, out.Err)
	} else {
		log.Printf("realtime: dropped (%s) user %d chat %d", out.Reason, p.ID, chatID)
	}
	return out
}

// RoomSize returns the number of connections subscribed to a chat.
func (b *Broker) RoomSize(chatID int64) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.rooms[chatID])
}

// Stats returns a snapshot of the broker counters.
func (b *Broker) Stats() Stats {
	b.mu.RLock()
	connections, rooms := len(b.conns), len(b.rooms)
	b.mu.RUnlock()

	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return Stats{
		Connections:    connections,
		Rooms:          rooms,
		Published:      b.published,
		Dropped:        lo.Assign(b.drops),
		QueueOverflows: b.overflows,
	}
}
