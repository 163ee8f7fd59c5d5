package kernel

import "testing"

func TestEndpointFIFO(t *testing.T) {
	ep := NewEndpoint(1, 2, 0)
	ep.Enqueue(Message{Sender: 3, Tag: 1})
	ep.Enqueue(Message{Sender: 3, Tag: 2})

	first, ok := ep.Dequeue()
	if !ok || first.Tag != 1 {
		t.Fatalf("expected tag 1 first, got %+v ok=%v", first, ok)
	}
	second, ok := ep.Dequeue()
	if !ok || second.Tag != 2 {
		t.Fatalf("expected tag 2 second, got %+v ok=%v", second, ok)
	}
	if _, ok := ep.Dequeue(); ok {
		t.Fatalf("expected empty queue")
	}
}

func TestEndpointSoftCap(t *testing.T) {
	ep := NewEndpoint(1, 2, 2)
	if !ep.Enqueue(Message{Tag: 1}) {
		t.Fatalf("expected first enqueue to succeed")
	}
	if !ep.Enqueue(Message{Tag: 2}) {
		t.Fatalf("expected second enqueue to succeed")
	}
	if ep.Enqueue(Message{Tag: 3}) {
		t.Fatalf("expected third enqueue to fail at soft cap 2")
	}
	if ep.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", ep.Depth())
	}
}

func TestEndpointDefaultSoftCap(t *testing.T) {
	ep := NewEndpoint(1, 2, 0)
	if ep.SoftCap != DefaultEndpointSoftCap {
		t.Fatalf("expected default soft cap %d, got %d", DefaultEndpointSoftCap, ep.SoftCap)
	}
}
