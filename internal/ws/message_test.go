package ws_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docroom/internal/lock"
	"docroom/internal/ot"
	"docroom/internal/ws"
)

func TestDecodeClientMessage_Operation(t *testing.T) {
	t.Parallel()

	frame := []byte(`{
		"type": "operation",
		"timestamp": "2026-01-02T15:04:05Z",
		"payload": {
			"operation": {
				"baseRevision": 3,
				"operations": [{"kind": "insert", "position": 5, "content": " world"}],
				"authorId": "alice"
			}
		}
	}`)

	msg, err := ws.DecodeClientMessage(frame)
	require.NoError(t, err)
	require.Equal(t, ws.TypeOperation, msg.Type)

	payload, ok := msg.Payload.(ws.OperationPayload)
	require.True(t, ok)

	if payload.Operation.BaseRevision != 3 {
		t.Errorf("expected base revision 3, got %d", payload.Operation.BaseRevision)
	}

	require.Len(t, payload.Operation.Operations, 1)

	op := payload.Operation.Operations[0]
	if op.Kind != ot.Insert || op.Position != 5 || op.Content != " world" {
		t.Errorf("unexpected operation %+v", op)
	}
}

func TestDecodeClientMessage_Cursor(t *testing.T) {
	t.Parallel()

	frame := []byte(`{
		"type": "cursor",
		"timestamp": "2026-01-02T15:04:05Z",
		"payload": {"cursor": {"userId": "alice", "position": {"line": 2, "column": 7, "absoluteOffset": 31}}}
	}`)

	msg, err := ws.DecodeClientMessage(frame)
	require.NoError(t, err)

	payload, ok := msg.Payload.(ws.CursorPayload)
	require.True(t, ok)

	if payload.Cursor.Position.AbsoluteOffset != 31 {
		t.Errorf("expected offset 31, got %d", payload.Cursor.Position.AbsoluteOffset)
	}
}

func TestDecodeClientMessage_LockAndUnlock(t *testing.T) {
	t.Parallel()

	for _, typ := range []ws.MessageType{ws.TypeLock, ws.TypeUnlock} {
		frame := []byte(`{"type": "` + string(typ) + `", "payload": {"userId": "bob", "range": {"start": 10, "end": 20}}}`)

		msg, err := ws.DecodeClientMessage(frame)
		require.NoError(t, err)
		require.Equal(t, typ, msg.Type)

		payload, ok := msg.Payload.(ws.LockPayload)
		require.True(t, ok)
		require.Equal(t, lock.Range{Start: 10, End: 20}, payload.Range)
	}
}

func TestDecodeClientMessage_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := ws.DecodeClientMessage([]byte(`{"type": "subscribe", "payload": {}}`))

	if !errors.Is(err, ws.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeClientMessage_ServerOnlyTypeRejected(t *testing.T) {
	t.Parallel()

	// "sync" is server-to-client; a client sending it is a protocol error.
	_, err := ws.DecodeClientMessage([]byte(`{"type": "sync", "payload": {}}`))

	if !errors.Is(err, ws.ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestDecodeClientMessage_MalformedJSON(t *testing.T) {
	t.Parallel()

	_, err := ws.DecodeClientMessage([]byte(`{"type": "operation", "payload": {`))

	if err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestDecodeClientMessage_MissingPayload(t *testing.T) {
	t.Parallel()

	_, err := ws.DecodeClientMessage([]byte(`{"type": "operation"}`))

	if err == nil {
		t.Error("expected an error for a missing payload")
	}
}

func TestNewMessage_StampsTimestamp(t *testing.T) {
	t.Parallel()

	before := time.Now()
	msg := ws.NewMessage(ws.TypeJoin, ws.UserPayload{UserID: "alice"})

	if msg.Timestamp.Before(before) {
		t.Error("timestamp should not predate construction")
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.Contains(t, string(data), `"type":"join"`)
	require.Contains(t, string(data), `"userId":"alice"`)
}
