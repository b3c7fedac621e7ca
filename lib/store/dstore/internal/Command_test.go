package internal

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// TestSizeBytes tests the SizeBytes method
func TestSizeBytes(t *testing.T) {
	tests := []struct {
		name     string
		command  Command
		expected int
	}{
		{
			name: "Write with key and value",
			command: Command{
				Type:  CommandTWrite,
				Key:   "testkey",
				Value: []byte("testvalue"),
			},
			expected: 1 + 4 + 7 + 9, // Type + KeyLen + Key + Value
		},
		{
			name: "Delete without value",
			command: Command{
				Type: CommandTDelete,
				Key:  "testkey",
			},
			expected: 1 + 4 + 7,
		},
		{
			name: "Create with empty key",
			command: Command{
				Type:  CommandTCreate,
				Value: []byte("testvalue"),
			},
			expected: 1 + 4 + 0 + 9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if size := tt.command.SizeBytes(); size != tt.expected {
				t.Errorf("SizeBytes() = %v, want %v", size, tt.expected)
			}
		})
	}
}

// TestSerializeDeserialize tests both Serialize and Deserialize methods
func TestSerializeDeserialize(t *testing.T) {
	tests := []struct {
		name    string
		command Command
	}{
		{
			name: "Write with lock record",
			command: Command{
				Type:  CommandTWrite,
				Key:   "sf.job-42.Qm9vYmF.lock",
				Value: []byte(`{"token":"abc","expire":1700000002.1}`),
			},
		},
		{
			name: "Delete without value",
			command: Command{
				Type: CommandTDelete,
				Key:  "sf.job-42.Qm9vYmF.lock",
			},
		},
		{
			name: "Create with binary value",
			command: Command{
				Type:  CommandTCreate,
				Key:   "binary",
				Value: []byte{0, 1, 2, 3, 254, 255},
			},
		},
		{
			name: "Write with Unicode key",
			command: Command{
				Type:  CommandTWrite,
				Key:   "你好世界",
				Value: []byte("unicode test"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.command.Serialize()

			if tt.command.SizeBytes() != len(data) {
				t.Errorf("SizeBytes() = %d, but serialized data length = %d", tt.command.SizeBytes(), len(data))
			}

			var got Command
			if err := got.Deserialize(data); err != nil {
				t.Fatalf("Deserialize() error = %v", err)
			}

			if got.Type != tt.command.Type {
				t.Errorf("Type mismatch: got %v, want %v", got.Type, tt.command.Type)
			}
			if got.Key != tt.command.Key {
				t.Errorf("Key mismatch: got %q, want %q", got.Key, tt.command.Key)
			}
			if !bytes.Equal(got.Value, tt.command.Value) {
				t.Errorf("Value mismatch: got %v, want %v", got.Value, tt.command.Value)
			}
		})
	}
}

// TestDeserializeErrors tests error cases in Deserialize
func TestDeserializeErrors(t *testing.T) {
	tests := []struct {
		name        string
		data        []byte
		expectedErr string
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectedErr: "data too short for command",
		},
		{
			name:        "Data too short (less than header)",
			data:        []byte{1, 2, 3},
			expectedErr: "data too short for command",
		},
		{
			name: "Invalid key length",
			data: func() []byte {
				data := make([]byte, headerSize)
				data[0] = byte(CommandTWrite)
				binary.BigEndian.PutUint32(data[1:5], 1000)
				return data
			}(),
			expectedErr: "data too short for key of length 1000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cmd Command
			err := cmd.Deserialize(tt.data)
			if err == nil {
				t.Fatalf("Expected error but got nil")
			}
			if err.Error() != tt.expectedErr {
				t.Errorf("Expected error %q, got %q", tt.expectedErr, err.Error())
			}
		})
	}
}

// TestBinaryFormat tests the exact binary format of serialized commands
func TestBinaryFormat(t *testing.T) {
	cmd := Command{
		Type:  CommandTCreate,
		Key:   "testkey",
		Value: []byte("testvalue"),
	}

	expected := make([]byte, cmd.SizeBytes())
	expected[0] = byte(CommandTCreate)
	binary.BigEndian.PutUint32(expected[1:5], 7)
	copy(expected[5:12], "testkey")
	copy(expected[12:], "testvalue")

	if serialized := cmd.Serialize(); !bytes.Equal(serialized, expected) {
		t.Errorf("Binary format does not match:\nGot:      %v\nExpected: %v", serialized, expected)
	}
}

// TestBufferReuse tests that Deserialize does not leak old value bytes into a new command
func TestBufferReuse(t *testing.T) {
	cmd := Command{Type: CommandTWrite, Key: "key", Value: []byte("a long original value")}

	short := Command{Type: CommandTWrite, Key: "key", Value: []byte("short")}
	if err := cmd.Deserialize(short.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if string(cmd.Value) != "short" {
		t.Errorf("Value not correctly deserialized: got %q", cmd.Value)
	}

	del := Command{Type: CommandTDelete, Key: "key"}
	if err := cmd.Deserialize(del.Serialize()); err != nil {
		t.Fatalf("Deserialize() error = %v", err)
	}
	if cmd.Value != nil {
		t.Errorf("Expected nil value after deserializing a delete, got %q", cmd.Value)
	}
}
