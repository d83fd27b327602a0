package proto

// StateCode is the result code carried by error responses
type StateCode int32

const (
	// Success means no error
	Success StateCode = iota
	// AccountCannotBeNull is returned for logins with an empty account
	AccountCannotBeNull
	// NotLoggedIn is returned for role requests on unbound connections
	NotLoggedIn
	// InternalError is returned when the server failed to handle a request
	InternalError
	// ItemNotEnough is returned when removing more items than owned
	ItemNotEnough
)

// Error makes StateCode usable as an error returned by handlers
func (c StateCode) Error() string {
	switch c {
	case Success:
		return "success"
	case AccountCannotBeNull:
		return "account cannot be null"
	case NotLoggedIn:
		return "not logged in"
	case InternalError:
		return "internal error"
	case ItemNotEnough:
		return "item not enough"
	}
	return "unknown state code"
}

// Prompt types of RespPrompt
const (
	// PromptLoginElsewhere tells the client that the account logged in on another device
	PromptLoginElsewhere int32 = 5
)

// ReqHeartbeat keeps the connection alive
type ReqHeartbeat struct {
	MessageObject
	TimeTick int64 `msgpack:"TimeTick"`
}

// MsgID returns MT_REQ_HEARTBEAT
func (*ReqHeartbeat) MsgID() MsgType { return MT_REQ_HEARTBEAT }

// RespHeartbeat answers ReqHeartbeat with the server time
type RespHeartbeat struct {
	MessageObject
	TimeTick int64 `msgpack:"TimeTick"`
}

// MsgID returns MT_RESP_HEARTBEAT
func (*RespHeartbeat) MsgID() MsgType { return MT_RESP_HEARTBEAT }

// RespPrompt is pushed to clients
type RespPrompt struct {
	MessageObject
	Type    int32  `msgpack:"Type"`
	Content string `msgpack:"Content"`
}

// MsgID returns MT_RESP_PROMPT
func (*RespPrompt) MsgID() MsgType { return MT_RESP_PROMPT }

// RespErrorCode answers a failed request
type RespErrorCode struct {
	MessageObject
	ErrCode StateCode `msgpack:"ErrCode"`
	Desc    string    `msgpack:"Desc"`
}

// MsgID returns MT_RESP_ERROR_CODE
func (*RespErrorCode) MsgID() MsgType { return MT_RESP_ERROR_CODE }

// ReqLogin logs in with an account
type ReqLogin struct {
	MessageObject
	UserName string `msgpack:"UserName"`
	Platform string `msgpack:"Platform"`
	SdkType  int32  `msgpack:"SdkType"`
	SdkToken string `msgpack:"SdkToken"`
	Device   string `msgpack:"Device"`
	Sign     string `msgpack:"Sign"`
}

// MsgID returns MT_REQ_LOGIN
func (*ReqLogin) MsgID() MsgType { return MT_REQ_LOGIN }

// UserInfo describes the logged in role
type UserInfo struct {
	AccountId  int64  `msgpack:"AccountId"`
	RoleId     int64  `msgpack:"RoleId"`
	RoleName   string `msgpack:"RoleName"`
	Level      int32  `msgpack:"Level"`
	VipLevel   int32  `msgpack:"VipLevel"`
	CreateTime int64  `msgpack:"CreateTime"`
}

// RespLogin answers ReqLogin
type RespLogin struct {
	MessageObject
	Code     StateCode `msgpack:"Code"`
	UserInfo UserInfo  `msgpack:"UserInfo"`
}

// MsgID returns MT_RESP_LOGIN
func (*RespLogin) MsgID() MsgType { return MT_RESP_LOGIN }

// ReqBagInfo queries the bag
type ReqBagInfo struct {
	MessageObject
}

// MsgID returns MT_REQ_BAG_INFO
func (*ReqBagInfo) MsgID() MsgType { return MT_REQ_BAG_INFO }

// ItemInfo is one stack of items in the bag
type ItemInfo struct {
	Uid    int64 `msgpack:"Uid"`
	ItemId int32 `msgpack:"ItemId"`
	Count  int64 `msgpack:"Count"`
}

// RespBagInfo lists the bag
type RespBagInfo struct {
	MessageObject
	Items []ItemInfo `msgpack:"Items"`
}

// MsgID returns MT_RESP_BAG_INFO
func (*RespBagInfo) MsgID() MsgType { return MT_RESP_BAG_INFO }

// ReqAddItem adds (or removes, with negative Count) items
type ReqAddItem struct {
	MessageObject
	ItemId int32 `msgpack:"ItemId"`
	Count  int64 `msgpack:"Count"`
}

// MsgID returns MT_REQ_ADD_ITEM
func (*ReqAddItem) MsgID() MsgType { return MT_REQ_ADD_ITEM }

// ReqWorldLevel queries the world level
type ReqWorldLevel struct {
	MessageObject
}

// MsgID returns MT_REQ_WORLD_LEVEL
func (*ReqWorldLevel) MsgID() MsgType { return MT_REQ_WORLD_LEVEL }

// RespWorldLevel answers ReqWorldLevel
type RespWorldLevel struct {
	MessageObject
	Level       int32 `msgpack:"Level"`
	OnlineCount int32 `msgpack:"OnlineCount"`
}

// MsgID returns MT_RESP_WORLD_LEVEL
func (*RespWorldLevel) MsgID() MsgType { return MT_RESP_WORLD_LEVEL }

func init() {
	Register(MT_REQ_HEARTBEAT, func() Message { return &ReqHeartbeat{} })
	Register(MT_RESP_HEARTBEAT, func() Message { return &RespHeartbeat{} })
	Register(MT_RESP_PROMPT, func() Message { return &RespPrompt{} })
	Register(MT_RESP_ERROR_CODE, func() Message { return &RespErrorCode{} })
	Register(MT_REQ_LOGIN, func() Message { return &ReqLogin{} })
	Register(MT_RESP_LOGIN, func() Message { return &RespLogin{} })
	Register(MT_REQ_BAG_INFO, func() Message { return &ReqBagInfo{} })
	Register(MT_RESP_BAG_INFO, func() Message { return &RespBagInfo{} })
	Register(MT_REQ_ADD_ITEM, func() Message { return &ReqAddItem{} })
	Register(MT_REQ_WORLD_LEVEL, func() Message { return &ReqWorldLevel{} })
	Register(MT_RESP_WORLD_LEVEL, func() Message { return &RespWorldLevel{} })
}
