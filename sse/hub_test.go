package sse

import (
	"bufio"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skillsenselab/workshopkit/logger"
)

func testLogger() *logger.Logger {
	return logger.NewDefault("sse-test")
}

func TestClientID(t *testing.T) {
	id := ClientID("ans-1", "conn-9")
	if id != "answer:ans-1:conn-9" {
		t.Errorf("unexpected client ID %q", id)
	}
	if AnswerPattern("ans-1") != "answer:ans-1:*" {
		t.Errorf("unexpected pattern %q", AnswerPattern("ans-1"))
	}
}

func TestClient_Send(t *testing.T) {
	client := NewClient("answer:a:1", testLogger(), WithAnswerID("a"))

	if client.AnswerID() != "a" {
		t.Errorf("expected answer ID 'a', got %q", client.AnswerID())
	}

	if ok := client.Send([]byte("hello")); !ok {
		t.Error("expected send to succeed")
	}

	select {
	case msg := <-client.Events():
		if string(msg) != "hello" {
			t.Errorf("expected 'hello', got %q", string(msg))
		}
	default:
		t.Error("expected message in channel")
	}
}

func TestClient_Send_BufferFull(t *testing.T) {
	client := NewClient("answer:a:1", testLogger())

	for i := 0; i < clientBuffer; i++ {
		client.Send([]byte("msg"))
	}

	if ok := client.Send([]byte("overflow")); ok {
		t.Error("expected send to fail when buffer is full")
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	client := NewClient("answer:a:1", testLogger())

	hub.Register(client)
	waitForClients(t, hub, 1)

	hub.Unregister(client)
	waitForClients(t, hub, 0)

	if _, open := <-client.Events(); open {
		t.Error("expected event channel to close on unregister")
	}
}

func TestHub_BroadcastToPattern(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	watcherA1 := NewClient(ClientID("a", "1"), testLogger())
	watcherA2 := NewClient(ClientID("a", "2"), testLogger())
	watcherB := NewClient(ClientID("b", "1"), testLogger())

	hub.Register(watcherA1)
	hub.Register(watcherA2)
	hub.Register(watcherB)
	waitForClients(t, hub, 3)

	hub.BroadcastToPattern(AnswerPattern("a"), []byte("status for a"))

	for _, c := range []*Client{watcherA1, watcherA2} {
		select {
		case msg := <-c.Events():
			if string(msg) != "status for a" {
				t.Errorf("client %s: expected 'status for a', got %q", c.ID(), string(msg))
			}
		case <-time.After(time.Second):
			t.Errorf("client %s should have received the broadcast", c.ID())
		}
	}

	select {
	case msg := <-watcherB.Events():
		t.Errorf("client for answer b should not receive %q", string(msg))
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	clients := []*Client{
		NewClient(ClientID("a", "1"), testLogger()),
		NewClient(ClientID("b", "1"), testLogger()),
	}
	for _, c := range clients {
		hub.Register(c)
	}
	waitForClients(t, hub, len(clients))

	hub.BroadcastToPattern(AllAnswersPattern, []byte("everyone"))

	for _, c := range clients {
		select {
		case msg := <-c.Events():
			if string(msg) != "everyone" {
				t.Errorf("client %s: got %q", c.ID(), string(msg))
			}
		case <-time.After(time.Second):
			t.Errorf("client %s missed the broadcast", c.ID())
		}
	}
}

func TestHub_Stop_ClosesClients(t *testing.T) {
	hub := NewHub(testLogger())
	done := make(chan struct{})
	go func() {
		hub.Run()
		close(done)
	}()

	client := NewClient("answer:a:1", testLogger())
	hub.Register(client)
	waitForClients(t, hub, 1)

	hub.Stop()
	hub.Stop() // idempotent

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if _, open := <-client.Events(); open {
		t.Error("expected client channel closed after hub stop")
	}
}

func TestHub_ConcurrentBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	client := NewClient(ClientID("a", "1"), testLogger())
	hub.Register(client)
	waitForClients(t, hub, 1)

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.BroadcastToPattern(AnswerPattern("a"), []byte("x"))
		}()
	}
	wg.Wait()

	received := 0
	timeout := time.After(2 * time.Second)
	for received < n {
		select {
		case <-client.Events():
			received++
		case <-timeout:
			t.Fatalf("received %d of %d broadcasts", received, n)
		}
	}
}

func TestServeSSE_ConnectedEventAndStream(t *testing.T) {
	hub := NewHub(testLogger())
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(httpHandler(hub))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/events")
	if err != nil {
		t.Fatalf("connecting to stream: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("expected text/event-stream, got %q", ct)
	}

	reader := bufio.NewReader(resp.Body)

	// First frame is the connected event.
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading connected event: %v", err)
	}
	if !strings.HasPrefix(line, "event: "+EventTypeConnected) {
		t.Errorf("expected connected event, got %q", line)
	}
	data, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading connected data: %v", err)
	}
	if !strings.Contains(data, `"answer_id":"a"`) {
		t.Errorf("connected event missing answer ID: %q", data)
	}
	if _, err := reader.ReadString('\n'); err != nil {
		t.Fatalf("reading frame separator: %v", err)
	}

	waitForClients(t, hub, 1)
	hub.BroadcastToPattern(AnswerPattern("a"), []byte(`{"type":"snapshot"}`))

	line, err = reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading broadcast: %v", err)
	}
	if line != "data: {\"type\":\"snapshot\"}\n" {
		t.Errorf("unexpected broadcast frame %q", line)
	}
}

func httpHandler(hub *Hub) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeSSE(hub, w, r, ClientID("a", "conn-1"), WithAnswerID("a"))
	})
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
}
