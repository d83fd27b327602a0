package netutil

import (
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/pkg/errors"
)

type timeoutError interface {
	Timeout() bool
}

// IsTimeoutError checks if the error is a timeout error
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	ne, ok := errors.Cause(err).(timeoutError)
	return ok && ne.Timeout()
}

// IsConnectionError check if the error is a connection error (peer reset, aborted or closed)
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}

	err = errors.Cause(err)
	if err == io.EOF || err == io.ErrUnexpectedEOF || errors.Is(err, net.ErrClosed) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}

	neterr, ok := err.(net.Error)
	if !ok {
		return strings.Contains(err.Error(), "use of closed network connection")
	}
	return !neterr.Timeout()
}

// WriteAll write all bytes of data to the writer, retrying on timeouts
func WriteAll(conn io.Writer, data []byte) error {
	for len(data) > 0 {
		n, err := conn.Write(data)
		data = data[n:]
		if err != nil && !IsTimeoutError(err) {
			return err
		}
	}
	return nil
}
