package proto

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/xiaonanln/gwactor/engine/netutil"
)

// MsgType is the type of message types
type MsgType = int32

const (
	// MT_INVALID is the invalid message type
	MT_INVALID MsgType = 0

	// MT_REQ_HEARTBEAT is sent by clients to keep the connection alive
	MT_REQ_HEARTBEAT MsgType = 1001
	// MT_RESP_HEARTBEAT answers MT_REQ_HEARTBEAT
	MT_RESP_HEARTBEAT MsgType = 1002
	// MT_RESP_PROMPT is an out-of-band prompt pushed to clients
	MT_RESP_PROMPT MsgType = 1003
	// MT_RESP_ERROR_CODE answers requests that failed with a StateCode
	MT_RESP_ERROR_CODE MsgType = 1004

	// MT_REQ_LOGIN is the login request
	MT_REQ_LOGIN MsgType = 1101
	// MT_RESP_LOGIN answers MT_REQ_LOGIN
	MT_RESP_LOGIN MsgType = 1102

	// MT_REQ_BAG_INFO queries the bag of the logged in role
	MT_REQ_BAG_INFO MsgType = 1201
	// MT_RESP_BAG_INFO answers MT_REQ_BAG_INFO and MT_REQ_ADD_ITEM
	MT_RESP_BAG_INFO MsgType = 1202
	// MT_REQ_ADD_ITEM adds items to the bag
	MT_REQ_ADD_ITEM MsgType = 1203

	// MT_REQ_WORLD_LEVEL queries the world level of the server
	MT_REQ_WORLD_LEVEL MsgType = 1301
	// MT_RESP_WORLD_LEVEL answers MT_REQ_WORLD_LEVEL
	MT_RESP_WORLD_LEVEL MsgType = 1302
)

var (
	// ErrUnknownMessageType is returned for message types without a registered factory
	ErrUnknownMessageType = errors.New("unknown message type")

	registryLock sync.RWMutex
	registry     = map[MsgType]func() Message{}
)

// Message is a network message carrying a correlation id
type Message interface {
	MsgID() MsgType
	GetUniID() int32
	SetUniID(uniID int32)
}

// MessageObject is embedded by all messages and holds the correlation id
type MessageObject struct {
	UniId int32 `msgpack:"UniId"`
}

// GetUniID returns the correlation id
func (m *MessageObject) GetUniID() int32 {
	return m.UniId
}

// SetUniID sets the correlation id
func (m *MessageObject) SetUniID(uniID int32) {
	m.UniId = uniID
}

// Register registers the factory of message type id
func Register(id MsgType, factory func() Message) {
	registryLock.Lock()
	defer registryLock.Unlock()
	if _, ok := registry[id]; ok {
		panic(errors.Errorf("message type %d registered twice", id))
	}
	if m := factory(); m.MsgID() != id {
		panic(errors.Errorf("message type %d: factory creates %T of type %d", id, m, m.MsgID()))
	}
	registry[id] = factory
}

// NewMessage creates an empty message of type id
func NewMessage(id MsgType) (Message, error) {
	registryLock.RLock()
	factory := registry[id]
	registryLock.RUnlock()
	if factory == nil {
		return nil, errors.Wrapf(ErrUnknownMessageType, "%d", id)
	}
	return factory(), nil
}

// Decode unpacks payload into a new message of type msgType
func Decode(msgType MsgType, payload []byte) (Message, error) {
	msg, err := NewMessage(msgType)
	if err != nil {
		return nil, err
	}
	if err := netutil.MSG_PACKER.UnpackMsg(payload, msg); err != nil {
		return nil, errors.Wrapf(err, "decode message type %d", msgType)
	}
	return msg, nil
}

// Encode packs the payload of msg
func Encode(msg Message) ([]byte, error) {
	return netutil.MSG_PACKER.PackMsg(msg, nil)
}

// FrameWriter writes frames, e.x. netutil.NetChannel
type FrameWriter interface {
	WriteFrame(msgType int32, payload []byte) error
}

// Send encodes msg and writes it as one frame
func Send(w FrameWriter, msg Message) error {
	payload, err := Encode(msg)
	if err != nil {
		return err
	}
	return w.WriteFrame(msg.MsgID(), payload)
}
