package serializer

import (
	"fmt"

	"github.com/ValentinKolb/dLock/rpc/common"
)

// IRPCSerializer converts messages to bytes and back
type IRPCSerializer interface {
	// Serialize encodes msg
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg.
	// Messages of an unknown type are rejected.
	Deserialize(b []byte, msg *common.Message) error
}

// checkType rejects message types this version does not know
func checkType(msg *common.Message) error {
	if msg.MsgType > common.MsgTCreate {
		return fmt.Errorf("unknown message type %d", uint8(msg.MsgType))
	}
	return nil
}
