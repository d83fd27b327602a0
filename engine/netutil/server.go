package netutil

import (
	"context"
	"net"
	"time"

	"github.com/xiaonanln/gwactor/engine/consts"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xtaci/kcp-go"
	"golang.org/x/net/websocket"
)

const (
	_RESTART_SERVER_INTERVAL = 3 * time.Second
)

// ServerDelegate serves accepted client connections. ServeConnection blocks until the connection is done.
type ServerDelegate interface {
	ServeConnection(conn net.Conn)
}

// ServeTCPForever serves on specified address as TCP server until ctx is done, restarting on failures
func ServeTCPForever(ctx context.Context, listenAddr string, delegate ServerDelegate) {
	serveForever(ctx, "TCP", listenAddr, func() error {
		return ServeTCP(ctx, listenAddr, delegate)
	})
}

// ServeKCPForever serves on specified address as KCP server until ctx is done, restarting on failures
func ServeKCPForever(ctx context.Context, listenAddr string, delegate ServerDelegate) {
	serveForever(ctx, "KCP", listenAddr, func() error {
		return ServeKCP(ctx, listenAddr, delegate)
	})
}

func serveForever(ctx context.Context, kind string, listenAddr string, serve func() error) {
	for {
		err := serveOnce(serve)
		if ctx.Err() != nil {
			return
		}
		gwlog.Errorf("%s server@%s failed with error: %v, will restart after %s", kind, listenAddr, err, _RESTART_SERVER_INTERVAL)
		select {
		case <-ctx.Done():
			return
		case <-time.After(_RESTART_SERVER_INTERVAL):
		}
	}
}

func serveOnce(serve func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			gwlog.TraceError("serve: paniced with error %v", r)
		}
	}()

	return serve()
}

func closeOnDone(ctx context.Context, ln net.Listener) func() {
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			ln.Close()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}

// ServeTCP serves on specified address as TCP server, returns nil when ctx is done
func ServeTCP(ctx context.Context, listenAddr string, delegate ServerDelegate) error {
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	gwlog.Infof("Listening on TCP: %s ...", ln.Addr())
	return serveListener(ctx, ln, delegate)
}

func serveListener(ctx context.Context, ln net.Listener, delegate ServerDelegate) error {
	defer ln.Close()
	defer closeOnDone(ctx, ln)()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if IsTimeoutError(err) {
				continue
			}
			return err
		}

		gwlog.Infof("Connection from: %s", conn.RemoteAddr())
		go delegate.ServeConnection(conn)
	}
}

// ServeKCP serves on specified address as KCP (reliable UDP) server, returns nil when ctx is done
func ServeKCP(ctx context.Context, listenAddr string, delegate ServerDelegate) error {
	ln, err := kcp.ListenWithOptions(listenAddr, nil, 10, 3)
	if err != nil {
		return err
	}
	ln.SetReadBuffer(consts.KCP_SOCKET_BUFFER_SIZE)
	ln.SetWriteBuffer(consts.KCP_SOCKET_BUFFER_SIZE)
	gwlog.Infof("Listening on KCP: %s ...", ln.Addr())

	defer ln.Close()
	defer closeOnDone(ctx, ln)()

	for {
		conn, err := ln.AcceptKCP()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		gwlog.Infof("KCP connection from %s", conn.RemoteAddr())
		// turbo mode, see https://github.com/skywind3000/kcp/blob/master/README.en.md#protocol-configuration
		conn.SetStreamMode(true)
		conn.SetWriteDelay(true)
		conn.SetNoDelay(1, 10, 2, 1)
		go delegate.ServeConnection(conn)
	}
}

// WebSocketHandler returns a websocket handler serving binary frames with delegate
func WebSocketHandler(delegate ServerDelegate) websocket.Handler {
	return func(wsConn *websocket.Conn) {
		gwlog.Debugf("WebSocket connection: %s", wsConn.Request().RemoteAddr)
		wsConn.PayloadType = websocket.BinaryFrame
		delegate.ServeConnection(wsConn)
	}
}
