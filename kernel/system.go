package kernel

// System routes messages between the sketch components.
type System struct {
	mbox [endpointCount]Mailbox
}

// NewSystem creates a kernel instance.
func NewSystem() *System {
	return &System{}
}

// Send copies the payload into a fixed-size message and enqueues it,
// evicting the oldest message if the destination is full.
func (s *System) Send(from, to Endpoint, kind uint8, payload []byte) bool {
	if to >= endpointCount {
		return false
	}
	var msg Message
	msg.From = from
	msg.To = to
	msg.Kind = kind
	if len(payload) > 0 {
		if len(payload) > MaxMessageBytes {
			payload = payload[:MaxMessageBytes]
		}
		msg.Len = uint16(len(payload))
		copy(msg.Data[:], payload)
	}
	s.mbox[to].Send(msg)
	return true
}

// SendInt enqueues an integer message.
func (s *System) SendInt(from, to Endpoint, kind uint8, v int64) bool {
	if to >= endpointCount {
		return false
	}
	msg := Message{From: from, To: to, Kind: kind}
	msg.PutInt(v)
	s.mbox[to].Send(msg)
	return true
}

// TryRecv dequeues one message for the endpoint without blocking.
func (s *System) TryRecv(to Endpoint) (Message, bool) {
	if to >= endpointCount {
		return Message{}, false
	}
	return s.mbox[to].TryRecv()
}

// Drain hands every queued message for the endpoint to fn and returns the count.
func (s *System) Drain(to Endpoint, fn func(Message)) int {
	n := 0
	for {
		msg, ok := s.TryRecv(to)
		if !ok {
			return n
		}
		n++
		if fn != nil {
			fn(msg)
		}
	}
}

// Dropped returns how many messages were evicted from the endpoint's mailbox.
func (s *System) Dropped(to Endpoint) uint64 {
	if to >= endpointCount {
		return 0
	}
	return s.mbox[to].Dropped()
}
