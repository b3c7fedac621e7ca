package serializer

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dLock/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Message types are written by name, values as base64 strings.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	if err := json.Unmarshal(b, msg); err != nil {
		return fmt.Errorf("json: decode message: %w", err)
	}
	return checkType(msg)
}
