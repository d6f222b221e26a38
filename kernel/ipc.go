package kernel

import (
	"encoding/binary"
	"sync"
)

// MaxMessageBytes is the maximum payload size for IPC messages.
const MaxMessageBytes = 64

// Message is a fixed-size message envelope.
type Message struct {
	From Endpoint
	To   Endpoint
	Kind uint8
	Len  uint16
	Data [MaxMessageBytes]byte
}

const (
	// MsgLinkValue carries one integer decoded from the serial link.
	MsgLinkValue uint8 = iota + 1
	// MsgLinkClosed reports that the serial link went away; the payload
	// is a short reason.
	MsgLinkClosed
)

// Payload returns the used part of Data.
func (m *Message) Payload() []byte {
	n := int(m.Len)
	if n > MaxMessageBytes {
		n = MaxMessageBytes
	}
	return m.Data[:n]
}

// Int decodes an integer payload written by PutInt.
func (m *Message) Int() (int64, bool) {
	p := m.Payload()
	if len(p) != 8 {
		return 0, false
	}
	return int64(binary.LittleEndian.Uint64(p)), true
}

// PutInt stores v as the message payload.
func (m *Message) PutInt(v int64) {
	binary.LittleEndian.PutUint64(m.Data[:8], uint64(v))
	m.Len = 8
}

const mailboxSlots = 8

// Mailbox is a fixed-size multi-producer, single-consumer queue.
// It never allocates; a full mailbox either rejects (TrySend) or
// evicts its oldest message (Send).
type Mailbox struct {
	_       [0]func() // prevent accidental copying.
	mu      sync.Mutex
	head    uint32
	tail    uint32
	dropped uint64
	slots   [mailboxSlots]Message
}

// TrySend attempts to enqueue a message, returning false if the mailbox is full.
func (mb *Mailbox) TrySend(msg Message) bool {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.head-mb.tail >= mailboxSlots {
		return false
	}
	mb.slots[mb.head%mailboxSlots] = msg
	mb.head++
	return true
}

// Send enqueues a message without blocking. When the mailbox is full the
// oldest message is dropped; the return value reports whether that happened.
func (mb *Mailbox) Send(msg Message) (evicted bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.head-mb.tail >= mailboxSlots {
		mb.tail++
		mb.dropped++
		evicted = true
	}
	mb.slots[mb.head%mailboxSlots] = msg
	mb.head++
	return evicted
}

// TryRecv attempts to dequeue one message, returning false if empty.
func (mb *Mailbox) TryRecv() (Message, bool) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.tail == mb.head {
		return Message{}, false
	}
	msg := mb.slots[mb.tail%mailboxSlots]
	mb.tail++
	return msg, true
}

// Len returns the number of queued messages.
func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return int(mb.head - mb.tail)
}

// Dropped returns how many messages Send has evicted.
func (mb *Mailbox) Dropped() uint64 {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return mb.dropped
}
