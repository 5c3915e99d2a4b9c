package network

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/echotype/echotype/pkg/logger"
	"github.com/echotype/echotype/pkg/metrics"
	"github.com/echotype/echotype/pkg/protocol"
	"github.com/echotype/echotype/pkg/session"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func startTestServer(t *testing.T) (*Server, chan session.Event, context.CancelFunc) {
	t.Helper()

	manager := session.NewManager()
	events := make(chan session.Event, 64)
	collector := metrics.NewCollector()

	srv := NewServer(Config{Host: "127.0.0.1", Port: 0}, "desktop-test", manager, events, collector, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = srv.Start(ctx) }()

	select {
	case <-srv.Started():
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}

	t.Cleanup(cancel)
	return srv, events, cancel
}

func dialTestServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServerHeartbeatRoundTrip(t *testing.T) {
	srv, _, _ := startTestServer(t)
	conn := dialTestServer(t, srv)

	hb := protocol.NewMessage(protocol.MessageHeartbeat, "")
	data, err := hb.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}

	reply, err := protocol.Decode(line)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if reply.Type != protocol.MessageAck {
		t.Errorf("reply type = %s, want ACK", reply.Type)
	}
}

func TestServerEmitsDisconnected(t *testing.T) {
	srv, events, _ := startTestServer(t)
	conn := dialTestServer(t, srv)

	// Trigger some traffic so the handler is live, then hang up
	hb, _ := protocol.NewMessage(protocol.MessageHeartbeat, "").Encode()
	if _, err := conn.Write(hb); err != nil {
		t.Fatal(err)
	}
	conn.Close()

	select {
	case ev := <-events:
		if ev.Type != session.EventDisconnected {
			t.Errorf("event = %v, want EventDisconnected", ev.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no disconnect event")
	}
}

func TestServerSurvivesBadConnection(t *testing.T) {
	srv, _, _ := startTestServer(t)

	// First connection sends garbage and disconnects
	bad := dialTestServer(t, srv)
	if _, err := bad.Write([]byte("not a message\n")); err != nil {
		t.Fatal(err)
	}
	bad.Close()

	// A later connection still works
	time.Sleep(50 * time.Millisecond)
	good := dialTestServer(t, srv)

	hb := protocol.NewMessage(protocol.MessageHeartbeat, "")
	data, _ := hb.Encode()
	if _, err := good.Write(data); err != nil {
		t.Fatalf("write: %v", err)
	}

	good.SetReadDeadline(time.Now().Add(2 * time.Second))
	line, err := bufio.NewReader(good).ReadBytes('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	reply, err := protocol.Decode(line)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Type != protocol.MessageAck {
		t.Errorf("reply type = %s, want ACK", reply.Type)
	}
}

func TestServerShutdown(t *testing.T) {
	srv, _, cancel := startTestServer(t)
	addr := srv.Addr().String()

	cancel()
	time.Sleep(100 * time.Millisecond)

	if _, err := net.DialTimeout("tcp", addr, 200*time.Millisecond); err == nil {
		t.Error("listener should be closed after shutdown")
	}
}

func TestPacketEndpointRoundTrip(t *testing.T) {
	collector := metrics.NewCollector()
	endpoint := NewPacketEndpoint(protocol.DefaultMTU, collector, testLogger())

	message, _ := protocol.NewMessage(protocol.MessageText, "the quick brown fox jumps over the lazy dog").Encode()

	packets := endpoint.Send(message)
	if len(packets) < 2 {
		t.Fatalf("expected multiple packets at minimum MTU, got %d", len(packets))
	}

	var (
		got      []byte
		complete bool
	)
	for _, packet := range packets {
		got, complete = endpoint.Receive(packet)
	}
	if !complete {
		t.Fatal("message did not complete")
	}
	if string(got) != string(message) {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", got, message)
	}
}

func TestPacketEndpointClampsMTU(t *testing.T) {
	endpoint := NewPacketEndpoint(5, metrics.NewCollector(), testLogger())
	if endpoint.MTU() != protocol.MinMTU {
		t.Errorf("mtu = %d, want %d", endpoint.MTU(), protocol.MinMTU)
	}

	endpoint.SetMTU(protocol.TargetMTU)
	if endpoint.MTU() != protocol.TargetMTU {
		t.Errorf("mtu = %d, want %d", endpoint.MTU(), protocol.TargetMTU)
	}
}

func TestPacketEndpointCountsFramingDrops(t *testing.T) {
	collector := metrics.NewCollector()
	endpoint := NewPacketEndpoint(protocol.DefaultMTU, collector, testLogger())

	// Continuation without a start is discarded
	if _, complete := endpoint.Receive([]byte{0x00, 0x00, 'x'}); complete {
		t.Fatal("orphan continuation must not complete")
	}
	if collector.GetFramingDrops() != 1 {
		t.Errorf("framing drops = %d, want 1", collector.GetFramingDrops())
	}

	// A valid in-progress message is not a drop
	message, _ := protocol.NewMessage(protocol.MessageText, "some longer dictated text to split").Encode()
	packets := endpoint.Send(message)
	if _, complete := endpoint.Receive(packets[0]); complete {
		t.Fatal("first of several packets must not complete")
	}
	if collector.GetFramingDrops() != 1 {
		t.Errorf("buffering must not count as a drop, got %d", collector.GetFramingDrops())
	}
}
