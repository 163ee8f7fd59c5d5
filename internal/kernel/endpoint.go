package kernel

// TransferredCap is a capability reference attached to a message, installed
// into the receiver's space at dequeue time (never at send time).
type TransferredCap struct {
	Kind  ObjectKind
	ID    uint64
	Perms Perm
}

// Message is one FIFO entry in an endpoint's queue.
type Message struct {
	Sender  ProcessID
	Tag     uint32
	Payload []byte
	Caps    []TransferredCap
}

// EndpointMetrics counts lifetime traffic through one endpoint.
type EndpointMetrics struct {
	Enqueued uint64
	Dequeued uint64
}

// DefaultEndpointSoftCap is the queue depth at which Enqueue starts
// returning ErrResourceExhausted. Endpoints never reorder or drop messages
// below the cap; this only bounds unbounded growth from a stuck receiver.
const DefaultEndpointSoftCap = 256

// Endpoint is a unidirectional mailbox: an owner (recorded for metrics only
// — sending requires a capability, not ownership) plus a FIFO queue.
type Endpoint struct {
	ID      EndpointID
	Owner   ProcessID
	SoftCap int

	queue   []Message
	metrics EndpointMetrics
}

// NewEndpoint creates an endpoint owned by owner with the given soft cap.
// A softCap of zero falls back to DefaultEndpointSoftCap.
func NewEndpoint(id EndpointID, owner ProcessID, softCap int) *Endpoint {
	if softCap <= 0 {
		softCap = DefaultEndpointSoftCap
	}
	return &Endpoint{ID: id, Owner: owner, SoftCap: softCap}
}

// Enqueue appends msg to the tail of the queue, or returns false if the
// endpoint's soft cap has been reached.
func (e *Endpoint) Enqueue(msg Message) bool {
	if len(e.queue) >= e.SoftCap {
		return false
	}
	e.queue = append(e.queue, msg)
	e.metrics.Enqueued++
	return true
}

// Dequeue pops the head of the queue, if any.
func (e *Endpoint) Dequeue() (Message, bool) {
	if len(e.queue) == 0 {
		return Message{}, false
	}
	msg := e.queue[0]
	e.queue = e.queue[1:]
	e.metrics.Dequeued++
	return msg, true
}

// Depth returns the number of messages currently queued.
func (e *Endpoint) Depth() int { return len(e.queue) }

// Metrics returns a copy of the endpoint's lifetime counters.
func (e *Endpoint) Metrics() EndpointMetrics { return e.metrics }
