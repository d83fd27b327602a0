package netutil

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/consts"
)

// Frame layout, big-endian:
//
//	[0:4)  int32 total length, including these 4 bytes
//	[4:8)  int32 message type
//	[8:total) payload
const (
	// FrameLengthSize is the size of the length field
	FrameLengthSize = 4
	// FrameHeaderSize is the size of length and message type fields
	FrameHeaderSize = 8
)

var (
	// NETWORK_ENDIAN is the byte order of frames
	NETWORK_ENDIAN = binary.BigEndian

	// ErrFrameTooLarge is returned when a frame declares a length above MAX_FRAME_LENGTH
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrBadFrame is returned when a frame declares a length smaller than its header
	ErrBadFrame = errors.New("bad frame")
)

// DecodeFrame tries to decode one frame from the head of buf.
//
// consumed is 0 when buf does not hold a complete frame yet; nothing is consumed then.
// payload aliases buf.
func DecodeFrame(buf []byte) (msgType int32, payload []byte, consumed int, err error) {
	if len(buf) < FrameLengthSize {
		return
	}

	total := int(int32(NETWORK_ENDIAN.Uint32(buf)))
	if total < FrameHeaderSize {
		err = errors.Wrapf(ErrBadFrame, "declared length %d", total)
		return
	}
	if total > consts.MAX_FRAME_LENGTH {
		err = errors.Wrapf(ErrFrameTooLarge, "declared length %d", total)
		return
	}
	if len(buf) < total {
		return
	}

	msgType = int32(NETWORK_ENDIAN.Uint32(buf[FrameLengthSize:FrameHeaderSize]))
	payload = buf[FrameHeaderSize:total]
	consumed = total
	return
}

// AppendFrame appends the frame of msgType and payload to buf
func AppendFrame(buf []byte, msgType int32, payload []byte) []byte {
	var header [FrameHeaderSize]byte
	NETWORK_ENDIAN.PutUint32(header[:FrameLengthSize], uint32(FrameHeaderSize+len(payload)))
	NETWORK_ENDIAN.PutUint32(header[FrameLengthSize:], uint32(msgType))
	buf = append(buf, header[:]...)
	return append(buf, payload...)
}

// EncodeFrame returns the frame of msgType and payload
func EncodeFrame(msgType int32, payload []byte) []byte {
	return AppendFrame(make([]byte, 0, FrameHeaderSize+len(payload)), msgType, payload)
}
