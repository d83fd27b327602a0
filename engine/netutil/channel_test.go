package netutil

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

type recordingHandler struct {
	sync.Mutex
	frames []string
	types  []int32
	closed chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{closed: make(chan struct{})}
}

func (h *recordingHandler) HandleFrame(ch *NetChannel, msgType int32, payload []byte) {
	h.Lock()
	h.types = append(h.types, msgType)
	h.frames = append(h.frames, string(payload))
	h.Unlock()
}

func (h *recordingHandler) OnChannelClosed(ch *NetChannel) {
	close(h.closed)
}

func TestNetChannelReadLoop(t *testing.T) {
	server, client := net.Pipe()
	ch := NewNetChannel(server, false)
	h := newRecordingHandler()
	done := make(chan error, 1)
	go func() { done <- ch.ReadLoop(h) }()

	var stream []byte
	stream = AppendFrame(stream, 1, []byte("hello"))
	stream = AppendFrame(stream, 2, make([]byte, 10000))
	stream = AppendFrame(stream, 3, nil)
	// deliver in awkward pieces
	for len(stream) > 0 {
		n := 7
		if n > len(stream) {
			n = len(stream)
		}
		_, err := client.Write(stream[:n])
		assert.Equal(t, nil, err)
		stream = stream[n:]
	}
	client.Close()

	select {
	case err := <-done:
		assert.Equal(t, nil, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("read loop did not exit")
	}
	<-h.closed
	assert.T(t, ch.IsClosed(), "channel should be closed")
	assert.Equal(t, []int32{1, 2, 3}, h.types)
	assert.Equal(t, "hello", h.frames[0])
	assert.Equal(t, 10000, len(h.frames[1]))
	assert.Equal(t, "", h.frames[2])
}

func TestNetChannelBadFrameClosesChannel(t *testing.T) {
	server, client := net.Pipe()
	ch := NewNetChannel(server, false)
	h := newRecordingHandler()
	done := make(chan error, 1)
	go func() { done <- ch.ReadLoop(h) }()

	go client.Write([]byte{0, 0, 0, 1})
	select {
	case err := <-done:
		assert.T(t, err != nil, "bad frame should fail the read loop")
	case <-time.After(5 * time.Second):
		t.Fatalf("read loop did not exit")
	}
	assert.T(t, ch.IsClosed(), "channel should be closed")
	client.Close()
}

func TestNetChannelWriteFrame(t *testing.T) {
	server, client := net.Pipe()
	ch := NewNetChannel(server, false)
	ch.SetSessionID(42)
	assert.Equal(t, int64(42), ch.SessionID())
	ch.RemoveSessionID()
	assert.Equal(t, int64(0), ch.SessionID())

	peer := NewNetChannel(client, false)
	h := newRecordingHandler()
	go peer.ReadLoop(h)

	assert.Equal(t, nil, ch.WriteFrame(9, []byte("pong")))
	deadline := time.Now().Add(5 * time.Second)
	for {
		h.Lock()
		n := len(h.frames)
		h.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	h.Lock()
	assert.Equal(t, []string{"pong"}, h.frames)
	h.Unlock()

	ch.Close()
	assert.T(t, ch.WriteFrame(9, nil) != nil, "write on closed channel should fail")
	<-h.closed
}

type echoDelegate struct{}

func (echoDelegate) ServeConnection(conn net.Conn) {
	ch := NewNetChannel(conn, false)
	ch.ReadLoop(echoHandler{})
}

type echoHandler struct{}

func (echoHandler) HandleFrame(ch *NetChannel, msgType int32, payload []byte) {
	ch.WriteFrame(msgType+1, payload)
}

func (echoHandler) OnChannelClosed(ch *NetChannel) {}

func TestServeTCPListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	assert.Equal(t, nil, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serveListener(ctx, ln, echoDelegate{}) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	assert.Equal(t, nil, err)
	ch := NewNetChannel(conn, false)
	h := newRecordingHandler()
	go ch.ReadLoop(h)
	assert.Equal(t, nil, ch.WriteFrame(100, []byte("ping")))

	deadline := time.Now().Add(5 * time.Second)
	for {
		h.Lock()
		n := len(h.frames)
		h.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(time.Millisecond)
	}
	h.Lock()
	assert.Equal(t, []int32{101}, h.types)
	h.Unlock()

	cancel()
	select {
	case err := <-served:
		assert.Equal(t, nil, err)
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not stop")
	}
	ch.Close()
}

func TestReserve(t *testing.T) {
	buf := make([]byte, 3, 4)
	buf = reserve(buf, 10)
	assert.Equal(t, 3, len(buf))
	assert.T(t, cap(buf)-len(buf) >= 10, "not enough capacity")
}

type countingConn struct {
	NetConn
	closes int32
}

func (c *countingConn) Close() error {
	atomic.AddInt32(&c.closes, 1)
	return c.NetConn.Close()
}

func TestNetChannelConcurrentClose(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()
	conn := &countingConn{NetConn: NetConn{Conn: server}}
	ch := newNetChannel(conn, server.RemoteAddr())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch.Close()
		}()
	}
	wg.Wait()
	ch.Close()

	assert.T(t, ch.IsClosed())
	assert.Equal(t, int32(1), atomic.LoadInt32(&conn.closes))
}
