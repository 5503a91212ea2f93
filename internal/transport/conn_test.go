package transport

import (
	"testing"
	"time"

	"raceserver/internal/protocol"
)

func TestDroppableSendFailsWhenQueueFull(t *testing.T) {
	c := newConn(1, "127.0.0.1:1", nil)
	defer c.Close()

	for i := 0; i < NOut/2; i++ {
		if !c.Send(&protocol.Envelope{Type: protocol.TypeTelemetry}) {
			t.Fatalf("expected droppable send %d to succeed", i)
		}
	}
	if c.Send(&protocol.Envelope{Type: protocol.TypeTelemetry}) {
		t.Fatal("expected droppable send to fail once queue is full")
	}
}

func TestCriticalSendDisconnectsAfterTimeout(t *testing.T) {
	c := newConn(1, "127.0.0.1:1", nil)
	defer c.Close()

	for i := 0; i < NOut/2; i++ {
		if !c.Send(&protocol.Envelope{Type: protocol.TypeError}) {
			t.Fatalf("expected critical send %d to succeed", i)
		}
	}

	start := time.Now()
	ok := c.Send(&protocol.Envelope{Type: protocol.TypeError})
	elapsed := time.Since(start)

	if ok {
		t.Fatal("expected blocked critical send to eventually fail")
	}
	if elapsed < TCrit {
		t.Fatalf("expected send to block for at least TCrit, took %v", elapsed)
	}
	if !c.Closed() {
		t.Fatal("expected connection to be closed after critical timeout")
	}
}

func TestSendOnClosedConnectionFails(t *testing.T) {
	c := newConn(1, "127.0.0.1:1", nil)
	c.Close()
	if c.Send(&protocol.Envelope{Type: protocol.TypeTelemetry}) {
		t.Fatal("expected send on closed connection to fail")
	}
}
