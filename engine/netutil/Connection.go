package netutil

import (
	"net"

	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/netconnutil"
)

// Connection is a net.Conn that needs Flush after writes
type Connection interface {
	netconnutil.FlushableConn
}

// NetConn adapts a net.Conn to Connection
type NetConn struct {
	net.Conn
}

// Flush does nothing for unbuffered connections
func (n NetConn) Flush() error {
	return nil
}

// WrapClientConn wraps a raw client connection: temporary errors are retried,
// the stream is optionally snappy compressed, reads and writes are buffered
func WrapClientConn(_conn net.Conn, compress bool) Connection {
	if tcpConn, ok := _conn.(*net.TCPConn); ok {
		tcpConn.SetNoDelay(consts.CLIENT_SET_TCP_NO_DELAY)
	}
	_conn = netconnutil.NewNoTempErrorConn(_conn)
	var conn Connection = NetConn{_conn}
	if compress {
		conn = netconnutil.NewSnappyConn(conn)
	}
	conn = netconnutil.NewBufferedConn(conn, consts.BUFFERED_READ_BUFFSIZE, consts.BUFFERED_WRITE_BUFFSIZE)
	return conn
}
