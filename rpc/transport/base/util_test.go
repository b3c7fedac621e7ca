package base

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		shardID uint64
		reqID   uint64
		data    []byte
		bufSize int
	}{
		{name: "small payload", shardID: 1, reqID: 7, data: []byte("read sf.job-42.U1muEso.lock"), bufSize: 64},
		{name: "empty payload", shardID: 2, reqID: 8, data: nil, bufSize: 64},
		{name: "buffer too small", shardID: 3, reqID: 1<<64 - 1, data: bytes.Repeat([]byte{0xab}, 1000), bufSize: 16},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client, server := net.Pipe()
			defer client.Close()
			defer server.Close()

			errCh := make(chan error, 1)
			go func() {
				errCh <- writeFrame(client, tc.shardID, tc.reqID, tc.data)
			}()

			shardID, reqID, data, err := readFrame(server, make([]byte, tc.bufSize))
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if err := <-errCh; err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}

			if shardID != tc.shardID || reqID != tc.reqID {
				t.Errorf("header mismatch: got shard %d request %d, want shard %d request %d", shardID, reqID, tc.shardID, tc.reqID)
			}
			if !bytes.Equal(data, tc.data) {
				t.Errorf("payload mismatch: got %d bytes, want %d", len(data), len(tc.data))
			}
		})
	}
}

func TestReadFrameRejectsOversizedPayload(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint64(header[:8], 1)
	binary.BigEndian.PutUint64(header[8:16], 1)
	binary.BigEndian.PutUint32(header[16:20], maxFrameSize+1)

	if _, _, _, err := readFrame(bytes.NewReader(header), nil); err == nil {
		t.Fatal("expected an error for an oversized frame")
	}
}

func TestReadFrameTruncated(t *testing.T) {
	header := make([]byte, frameHeaderSize)
	binary.BigEndian.PutUint32(header[16:20], 10)
	data := append(header, 'a', 'b', 'c')

	_, _, _, err := readFrame(bytes.NewReader(data), nil)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF, got %v", err)
	}

	_, _, _, err = readFrame(bytes.NewReader(header[:5]), nil)
	if err != io.ErrUnexpectedEOF {
		t.Fatalf("expected io.ErrUnexpectedEOF for a short header, got %v", err)
	}
}
