package netutil

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
)

var lastChannelID int64

// FrameHandler handles frames read by a NetChannel, in reading order
type FrameHandler interface {
	HandleFrame(ch *NetChannel, msgType int32, payload []byte)
	// OnChannelClosed is called once when the read loop of ch exits
	OnChannelClosed(ch *NetChannel)
}

// NetChannel is a framed client connection
type NetChannel struct {
	id         int64
	conn       Connection
	remoteAddr string
	writeLock  sync.Mutex
	closed     xnsyncutil.AtomicBool
	closeOnce  sync.Once
	closeErr   error
	sessionID  int64
	lastActive int64
	sign       string
}

// NewNetChannel creates a NetChannel over a raw connection
func NewNetChannel(conn net.Conn, compress bool) *NetChannel {
	return newNetChannel(WrapClientConn(conn, compress), conn.RemoteAddr())
}

func newNetChannel(conn Connection, remote net.Addr) *NetChannel {
	nc := &NetChannel{
		id:         atomic.AddInt64(&lastChannelID, 1),
		conn:       conn,
		lastActive: time.Now().UnixNano(),
	}
	if remote != nil {
		nc.remoteAddr = remote.String()
	}
	return nc
}

func (nc *NetChannel) String() string {
	return fmt.Sprintf("NetChannel<%d@%s>", nc.id, nc.remoteAddr)
}

// ID returns the process-unique id of the channel
func (nc *NetChannel) ID() int64 {
	return nc.id
}

// RemoteAddr returns the address of the peer
func (nc *NetChannel) RemoteAddr() string {
	return nc.remoteAddr
}

// SetSessionID binds the channel to an actor id
func (nc *NetChannel) SetSessionID(id int64) {
	atomic.StoreInt64(&nc.sessionID, id)
}

// SessionID returns the bound actor id, 0 if unbound
func (nc *NetChannel) SessionID() int64 {
	return atomic.LoadInt64(&nc.sessionID)
}

// RemoveSessionID unbinds the channel
func (nc *NetChannel) RemoveSessionID() {
	atomic.StoreInt64(&nc.sessionID, 0)
}

// Sign returns the client signature reported at login
func (nc *NetChannel) Sign() string {
	nc.writeLock.Lock()
	defer nc.writeLock.Unlock()
	return nc.sign
}

// SetSign records the client signature reported at login
func (nc *NetChannel) SetSign(sign string) {
	nc.writeLock.Lock()
	nc.sign = sign
	nc.writeLock.Unlock()
}

// LastActive returns the time of the last received frame
func (nc *NetChannel) LastActive() time.Time {
	return time.Unix(0, atomic.LoadInt64(&nc.lastActive))
}

// WriteFrame sends one frame and flushes it
func (nc *NetChannel) WriteFrame(msgType int32, payload []byte) error {
	if nc.closed.Load() {
		return errors.Errorf("%s is closed", nc)
	}

	frame := EncodeFrame(msgType, payload)
	if consts.DEBUG_PACKETS {
		gwlog.Debugf("%s: send frame type=%d len=%d", nc, msgType, len(frame))
	}

	nc.writeLock.Lock()
	defer nc.writeLock.Unlock()
	if err := WriteAll(nc.conn, frame); err != nil {
		return errors.Wrapf(err, "%s: write frame", nc)
	}
	return nc.conn.Flush()
}

// Close closes the underlying connection, safe to call more than once
func (nc *NetChannel) Close() error {
	nc.closeOnce.Do(func() {
		nc.closed.Store(true)
		nc.closeErr = nc.conn.Close()
	})
	return nc.closeErr
}

// IsClosed returns if the channel is closed
func (nc *NetChannel) IsClosed() bool {
	return nc.closed.Load()
}

// ReadLoop reads and decodes frames until the connection fails or is closed.
// Peer disconnects end the loop with a nil error.
func (nc *NetChannel) ReadLoop(handler FrameHandler) (err error) {
	defer func() {
		nc.Close()
		handler.OnChannelClosed(nc)
	}()

	buf := make([]byte, 0, consts.FRAME_READ_CHUNK_SIZE)
	for {
		for {
			msgType, payload, consumed, derr := DecodeFrame(buf)
			if derr != nil {
				gwlog.Errorf("%s: decode frame failed: %v", nc, derr)
				return derr
			}
			if consumed == 0 {
				break
			}
			if consts.DEBUG_PACKETS {
				gwlog.Debugf("%s: recv frame type=%d len=%d", nc, msgType, consumed)
			}
			atomic.StoreInt64(&nc.lastActive, time.Now().UnixNano())
			handler.HandleFrame(nc, msgType, append([]byte(nil), payload...))
			buf = buf[consumed:]
		}

		buf = reserve(buf, consts.FRAME_READ_CHUNK_SIZE)
		n, rerr := nc.conn.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if rerr != nil {
			if nc.closed.Load() || IsConnectionError(rerr) {
				gwlog.Infof("%s: connection closed: %v", nc, rerr)
				return nil
			}
			if IsTimeoutError(rerr) {
				continue
			}
			gwlog.Errorf("%s: read failed: %v", nc, rerr)
			return rerr
		}
	}
}

// reserve makes sure buf has at least n bytes of free capacity
func reserve(buf []byte, n int) []byte {
	if cap(buf)-len(buf) >= n {
		return buf
	}
	newCap := 2 * len(buf)
	if newCap < len(buf)+n {
		newCap = len(buf) + n
	}
	newBuf := make([]byte, len(buf), newCap)
	copy(newBuf, buf)
	return newBuf
}
