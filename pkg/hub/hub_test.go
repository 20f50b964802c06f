package hub

import (
	"context"
	"testing"
	"time"
)

// attach registers a connectionless client for inspecting deliveries.
func attach(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := newClient(h, nil)
	select {
	case h.register <- c:
	case <-time.After(time.Second):
		t.Fatal("register timed out")
	}
	return c
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
	}
	return Message{}
}

func TestHub_Broadcast(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	a, b := attach(t, h), attach(t, h)
	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := h.ClientCount(); n != 2 {
		t.Fatalf("ClientCount = %d, want 2", n)
	}

	if err := h.BroadcastJSON(map[string]string{"label": "glass"}, false); err != nil {
		t.Fatal(err)
	}
	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		if msg.Kind != KindJSON || string(msg.Data) != `{"label":"glass"}` {
			t.Errorf("unexpected message: %+v", msg)
		}
	}

	h.BroadcastFrame([]byte{0xff, 0xd8})
	if msg := receive(t, a); msg.Kind != KindFrame || len(msg.Data) != 2 {
		t.Errorf("unexpected binary message: %+v", msg)
	}
}

func TestHub_RetainedMessageForLateClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	early := attach(t, h)
	h.BroadcastJSON(map[string]int{"seq": 1}, true)
	h.BroadcastJSON(map[string]int{"seq": 2}, false)
	receive(t, early)
	receive(t, early)

	late := attach(t, h)
	if msg := receive(t, late); string(msg.Data) != `{"seq":1}` {
		t.Errorf("late client got %s, want retained message", msg.Data)
	}
}

func TestHub_Unregister(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	c := attach(t, h)
	h.unregister <- c

	if _, ok := <-c.send; ok {
		t.Error("send channel should be closed after unregister")
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d, want 0", n)
	}
}

func TestHub_StopDisconnectsClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New("test", nil)
	go h.Run(ctx)

	c := attach(t, h)
	cancel()

	select {
	case <-h.Done():
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-c.send; ok {
		t.Error("client channel should be closed on stop")
	}
	if h.IsRunning() {
		t.Error("IsRunning should be false after stop")
	}

	// Broadcasting to a stopped hub is a no-op.
	h.BroadcastFrame([]byte("late"))
	if NewClient(h, nil) != nil {
		t.Error("NewClient on a stopped hub should return nil")
	}
}

func TestHub_SlowClientSkipsFramesButKeepsResults(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := New("test", nil)
	go h.Run(ctx)

	slow := attach(t, h)
	// Nobody reads slow.send, so its buffer fills with frames.
	for i := 0; i < clientBuffer+10; i++ {
		h.BroadcastFrame([]byte{byte(i)})
	}

	deadline := time.Now().Add(time.Second)
	for slow.Skipped() < 10 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := slow.Skipped(); got != 10 {
		t.Errorf("Skipped = %d, want 10", got)
	}
	if n := h.ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want the slow frame client kept", n)
	}

	// A result that cannot be delivered disconnects the client.
	h.BroadcastJSON(map[string]string{"label": "paper"}, false)
	deadline = time.Now().Add(time.Second)
	for h.ClientCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := h.ClientCount(); n != 0 {
		t.Errorf("ClientCount = %d, want 0 after an undeliverable result", n)
	}
}

func TestClient_CoalesceKeepsNewestFrame(t *testing.T) {
	c := newClient(New("test", nil), nil)
	c.send <- Frame([]byte("2"))
	c.send <- Frame([]byte("3"))
	c.send <- JSON([]byte(`{"seq":1}`))
	c.send <- Frame([]byte("4"))

	out, ok := c.coalesce(Frame([]byte("1")))
	if !ok {
		t.Fatal("coalesce reported a closed channel")
	}
	if len(out) != 2 || string(out[0].Data) != "3" || out[1].Kind != KindJSON {
		t.Fatalf("coalesce = %+v, want frame 3 then the JSON message", out)
	}
	if c.Skipped() != 2 {
		t.Errorf("Skipped = %d, want 2", c.Skipped())
	}

	close(c.send)
	out, ok = c.coalesce(Frame([]byte("x")))
	if ok {
		t.Error("coalesce should report the closed channel")
	}
	// Frame 4 was still queued when the channel closed.
	if len(out) != 1 || string(out[0].Data) != "4" {
		t.Errorf("coalesce after close = %+v, want frame 4", out)
	}
}
