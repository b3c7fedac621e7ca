package common

import (
	"encoding/json"
	"testing"

	"github.com/ValentinKolb/dLock/lib/store"
)

func TestResponseErrors(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
		code store.RetCode
	}{
		{name: "not found", msg: NewReadResponse(nil, store.NotFound("k")), code: store.RetCNotFound},
		{name: "unsupported", msg: NewCreateResponse(false, store.NewError(store.RetCUnsupportedOperation, "no")), code: store.RetCUnsupportedOperation},
		{name: "plain error", msg: NewWriteResponse(errString("boom")), code: store.RetCInternalError},
		{name: "error message", msg: NewErrorResponse(store.RetCInvalidOperation, "bad"), code: store.RetCInvalidOperation},
		{name: "error without code", msg: &Message{MsgType: MsgTError, Err: "shard not found"}, code: store.RetCInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.StoreError()
			if err == nil {
				t.Fatalf("expected an error")
			}
			if code := store.CodeOf(err); code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, code)
			}
		})
	}

	if err := NewDeleteResponse(nil).StoreError(); err != nil {
		t.Errorf("expected no error for a successful response, got %v", err)
	}
}

func TestStoreErrorMessageNotNested(t *testing.T) {
	msg := NewReadResponse(nil, store.NotFound("k"))
	if msg.Err != store.NotFound("k").Msg {
		t.Errorf("expected the plain store message, got %q", msg.Err)
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for _, mt := range []MessageType{MsgTUnknown, MsgTSuccess, MsgTError, MsgTRead, MsgTWrite, MsgTDelete, MsgTCreate} {
		data, err := json.Marshal(mt)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		var got MessageType
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("Unmarshal(%s) failed: %v", data, err)
		}
		if got != mt {
			t.Errorf("expected %s, got %s", mt, got)
		}
	}

	var mt MessageType
	if err := json.Unmarshal([]byte(`"setE"`), &mt); err == nil {
		t.Errorf("expected error for unknown message type")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
