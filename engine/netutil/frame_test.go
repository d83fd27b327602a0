package netutil

import (
	"bytes"
	"testing"

	"github.com/bmizerany/assert"
	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/consts"
)

func TestEncodeDecodeFrame(t *testing.T) {
	payload := []byte("0123456789")
	frame := EncodeFrame(1001, payload)
	assert.Equal(t, FrameHeaderSize+10, len(frame))
	assert.Equal(t, []byte{0, 0, 0, 18}, frame[:4])

	msgType, p, consumed, err := DecodeFrame(frame)
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(1001), msgType)
	assert.Equal(t, payload, p)
	assert.Equal(t, 18, consumed)
}

func TestDecodeFrameWithTrailingPartialFrame(t *testing.T) {
	first := EncodeFrame(7, []byte("abcdef"))
	assert.Equal(t, 14, len(first))
	second := EncodeFrame(8, []byte("ghijkl"))
	buf := append(append([]byte{}, first...), second[:3]...)

	msgType, p, consumed, err := DecodeFrame(buf)
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(7), msgType)
	assert.Equal(t, []byte("abcdef"), p)
	assert.Equal(t, 14, consumed)

	rest := buf[consumed:]
	assert.Equal(t, 3, len(rest))
	_, _, consumed, err = DecodeFrame(rest)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, consumed)
}

func TestDecodeFrameIncremental(t *testing.T) {
	frame := EncodeFrame(3, bytes.Repeat([]byte{1}, 100))
	for i := 0; i < len(frame); i++ {
		_, _, consumed, err := DecodeFrame(frame[:i])
		assert.Equal(t, nil, err)
		assert.Tf(t, consumed == 0, "frame should not be parseable with %d bytes", i)
	}
	_, _, consumed, _ := DecodeFrame(frame)
	assert.Equal(t, len(frame), consumed)
}

func TestDecodeFrameEmptyPayload(t *testing.T) {
	msgType, p, consumed, err := DecodeFrame(EncodeFrame(5, nil))
	assert.Equal(t, nil, err)
	assert.Equal(t, int32(5), msgType)
	assert.Equal(t, 0, len(p))
	assert.Equal(t, FrameHeaderSize, consumed)
}

func TestDecodeBadFrames(t *testing.T) {
	_, _, _, err := DecodeFrame([]byte{0, 0, 0, 7, 0, 0, 0, 1})
	assert.Equal(t, ErrBadFrame, errors.Cause(err))

	_, _, _, err = DecodeFrame([]byte{0xff, 0xff, 0xff, 0xff})
	assert.Equal(t, ErrBadFrame, errors.Cause(err))

	big := make([]byte, 4)
	NETWORK_ENDIAN.PutUint32(big, consts.MAX_FRAME_LENGTH+1)
	_, _, _, err = DecodeFrame(big)
	assert.Equal(t, ErrFrameTooLarge, errors.Cause(err))
}

func TestAppendFrame(t *testing.T) {
	var buf []byte
	buf = AppendFrame(buf, 1, []byte("x"))
	buf = AppendFrame(buf, 2, []byte("yz"))
	msgType, p, n, _ := DecodeFrame(buf)
	assert.Equal(t, int32(1), msgType)
	assert.Equal(t, []byte("x"), p)
	msgType, p, _, _ = DecodeFrame(buf[n:])
	assert.Equal(t, int32(2), msgType)
	assert.Equal(t, []byte("yz"), p)
}
