package realtime

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/curriculum-orchestrator/internal/platform/logger"
)

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubOrderingAndReconnect(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	channel := TenantChannel(uuid.New())

	clientA := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientA, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationRunCreated})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationRunProgress})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventGenerationRunCreated {
		t.Fatalf("first event: expected %s got %s", SSEEventGenerationRunCreated, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventGenerationRunProgress {
		t.Fatalf("second event: expected %s got %s", SSEEventGenerationRunProgress, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers: expected 0 got %d", n)
	}

	clientB := hub.NewSSEClient(uuid.New())
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationRunDone})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventGenerationRunDone {
		t.Fatalf("reconnect event: expected %s got %s", SSEEventGenerationRunDone, got.Event)
	}
}

func TestSSEHubIsolatesChannels(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	a := hub.NewSSEClient(uuid.New())
	b := hub.NewSSEClient(uuid.New())
	chA, chB := TenantChannel(uuid.New()), TenantChannel(uuid.New())
	hub.AddChannel(a, chA)
	hub.AddChannel(b, chB)

	hub.Broadcast(SSEMessage{Channel: chA, Event: SSEEventGenerationRunProgress})
	recvMessage(t, a.Outbound, time.Second)
	select {
	case msg := <-b.Outbound:
		t.Fatalf("client on another tenant received %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	channel := TenantChannel(uuid.New())
	c := hub.NewSSEClient(uuid.New())
	hub.AddChannel(c, channel)

	done := make(chan struct{})
	go func() {
		for i := 0; i < outboundBuffer+10; i++ {
			hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationRunProgress})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Broadcast blocked on a slow client")
	}
	if len(c.Outbound) != outboundBuffer {
		t.Fatalf("buffer: expected %d got %d", outboundBuffer, len(c.Outbound))
	}
}

func TestSSEHubServeHTTPStreamsEvents(t *testing.T) {
	hub := NewSSEHub(logger.Nop())
	channel := TenantChannel(uuid.New())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := hub.NewSSEClient(uuid.Nil)
		hub.AddChannel(client, channel)
		defer hub.CloseClient(client)
		hub.ServeHTTP(w, r, client)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: expected text/event-stream got %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(channel) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventGenerationRunProgress, Data: map[string]any{"progress": 42}})

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	var event, data string
	timeout := time.After(2 * time.Second)
	for data == "" {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed early")
			}
			if strings.HasPrefix(line, "event: ") {
				event = strings.TrimPrefix(line, "event: ")
			}
			if strings.HasPrefix(line, "data: ") {
				data = strings.TrimPrefix(line, "data: ")
			}
		case <-timeout:
			t.Fatalf("timed out waiting for event")
		}
	}
	if event != string(SSEEventGenerationRunProgress) {
		t.Fatalf("event: expected %s got %s", SSEEventGenerationRunProgress, event)
	}
	var msg SSEMessage
	if err := json.Unmarshal([]byte(data), &msg); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	if msg.Channel != channel {
		t.Fatalf("channel: expected %s got %s", channel, msg.Channel)
	}
}
