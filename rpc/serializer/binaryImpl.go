package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dLock/rpc/common"
)

// NewBinarySerializer creates a new serializer using a compact binary format.
//
// Layout: one byte message type, one byte of field flags, then every present
// field in the order key, value, ok, code, err. Strings and byte slices are
// prefixed with their length as big endian uint32, the code is a big endian
// uint64 and ok a single byte.
func NewBinarySerializer() IRPCSerializer {
	return binarySerializerImpl{}
}

type binarySerializerImpl struct{}

// flags marking the fields present in a message
const (
	hasKey   byte = 1 << 0
	hasValue byte = 1 << 1
	hasOk    byte = 1 << 2
	hasCode  byte = 1 << 3
	hasErr   byte = 1 << 4
)

func (binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	out := make([]byte, 2, encodedSize(msg))
	out[0] = byte(msg.MsgType)

	var flags byte
	if msg.Key != "" {
		flags |= hasKey
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Key)))
		out = append(out, msg.Key...)
	}
	// an empty value is sent, only nil is left out
	if msg.Value != nil {
		flags |= hasValue
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Value)))
		out = append(out, msg.Value...)
	}
	if msg.Ok {
		flags |= hasOk
		out = append(out, 1)
	}
	if msg.Code > 0 {
		flags |= hasCode
		out = binary.BigEndian.AppendUint64(out, msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Err)))
		out = append(out, msg.Err...)
	}
	out[1] = flags

	return out, nil
}

func (binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < 2 {
		return fmt.Errorf("data too short for message header")
	}

	msg.MsgType = common.MessageType(data[0])
	if err := checkType(msg); err != nil {
		return err
	}
	flags := data[1]
	r := reader{data: data, pos: 2}

	msg.Key = ""
	if flags&hasKey != 0 {
		key, err := r.bytes("key")
		if err != nil {
			return err
		}
		msg.Key = string(key)
	}

	if flags&hasValue != 0 {
		value, err := r.bytes("value")
		if err != nil {
			return err
		}
		// reuse the old slice when it is large enough, never return nil for a present value
		if cap(msg.Value) < len(value) || msg.Value == nil {
			msg.Value = make([]byte, len(value))
		} else {
			msg.Value = msg.Value[:len(value)]
		}
		copy(msg.Value, value)
	} else {
		msg.Value = nil
	}

	msg.Ok = false
	if flags&hasOk != 0 {
		b, err := r.next(1, "ok flag")
		if err != nil {
			return err
		}
		msg.Ok = b[0] != 0
	}

	msg.Code = 0
	if flags&hasCode != 0 {
		b, err := r.next(8, "code")
		if err != nil {
			return err
		}
		msg.Code = binary.BigEndian.Uint64(b)
	}

	msg.Err = ""
	if flags&hasErr != 0 {
		b, err := r.bytes("error")
		if err != nil {
			return err
		}
		msg.Err = string(b)
	}

	return nil
}

// reader walks the fields of an encoded message
type reader struct {
	data []byte
	pos  int
}

// next returns the following n bytes
func (r *reader) next(n int, field string) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s", field)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// bytes returns a length prefixed field
func (r *reader) bytes(field string) ([]byte, error) {
	l, err := r.next(4, field+" length")
	if err != nil {
		return nil, err
	}
	return r.next(int(binary.BigEndian.Uint32(l)), field+" data")
}

func encodedSize(msg common.Message) int {
	size := 2
	if msg.Key != "" {
		size += 4 + len(msg.Key)
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Ok {
		size++
	}
	if msg.Code > 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	return size
}
