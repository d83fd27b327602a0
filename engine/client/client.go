// Package client is a minimal game client used by bots and end-to-end tests.
package client

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/gwlog"
	"github.com/xiaonanln/gwactor/engine/netutil"
	"github.com/xiaonanln/gwactor/engine/proto"
	"github.com/xtaci/kcp-go"
)

const recvQueueSize = 64

// ErrClosed is returned after the connection is closed
var ErrClosed = errors.New("client closed")

// Client is a connection to a game server
type Client struct {
	ch        *netutil.NetChannel
	recv      chan proto.Message
	closed    chan struct{}
	lastUniID int32
}

// Dial connects to addr over network "tcp" or "kcp"
func Dial(ctx context.Context, network string, addr string) (*Client, error) {
	var conn net.Conn
	var err error
	switch network {
	case "tcp":
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", addr)
	case "kcp":
		var sess *kcp.UDPSession
		if sess, err = kcp.DialWithOptions(addr, nil, 10, 3); err == nil {
			sess.SetStreamMode(true)
			sess.SetWriteDelay(true)
			sess.SetNoDelay(1, 10, 2, 1)
			conn = sess
		}
	default:
		return nil, errors.Errorf("unknown network: %s", network)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s %s", network, addr)
	}

	c := &Client{
		ch:     netutil.NewNetChannel(conn, false),
		recv:   make(chan proto.Message, recvQueueSize),
		closed: make(chan struct{}),
	}
	go c.ch.ReadLoop(c)
	return c, nil
}

func (c *Client) String() string {
	return fmt.Sprintf("Client<%s>", c.ch.RemoteAddr())
}

// HandleFrame decodes frames received from the server
func (c *Client) HandleFrame(ch *netutil.NetChannel, msgType int32, payload []byte) {
	msg, err := proto.Decode(msgType, payload)
	if err != nil {
		gwlog.Errorf("%s: %v", c, err)
		return
	}
	select {
	case c.recv <- msg:
	case <-c.closed:
	}
}

// OnChannelClosed ends pending receives
func (c *Client) OnChannelClosed(ch *netutil.NetChannel) {
	close(c.closed)
}

// Send sends msg tagged with a new correlation id and returns the id
func (c *Client) Send(msg proto.Message) (int32, error) {
	uniID := atomic.AddInt32(&c.lastUniID, 1)
	msg.SetUniID(uniID)
	return uniID, proto.Send(c.ch, msg)
}

// Recv returns the next message from the server
func (c *Client) Recv(ctx context.Context) (proto.Message, error) {
	select {
	case msg := <-c.recv:
		return msg, nil
	case <-c.closed:
		select {
		case msg := <-c.recv:
			return msg, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Request sends msg and waits for the message answering it. Other messages received meanwhile are dropped.
func (c *Client) Request(ctx context.Context, msg proto.Message) (proto.Message, error) {
	uniID, err := c.Send(msg)
	if err != nil {
		return nil, err
	}
	for {
		resp, err := c.Recv(ctx)
		if err != nil {
			return nil, err
		}
		if resp.GetUniID() == uniID {
			return resp, nil
		}
		gwlog.Debugf("%s: skip %T while waiting for answer of %d", c, resp, uniID)
	}
}

// Close closes the connection
func (c *Client) Close() error {
	return c.ch.Close()
}
