package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fieldintake/internal/model"
)

func TestHubBroadcastsUploadStatus(t *testing.T) {
	hub := NewHub()
	conn := &Connection{Send: make(chan []byte, 8), Hub: hub}
	hub.Register(conn)
	defer hub.Unregister(conn)

	unit := &model.UploadUnit{
		EntityID:   "entity-1",
		EntityType: "survey",
		Status:     model.UploadStatusFailed,
	}
	hub.BroadcastUploadStatus(unit)

	select {
	case data := <-conn.Send:
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, MsgUploadStatus, msg.Type)

		var got model.UploadUnit
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "entity-1", got.EntityID)
		assert.Equal(t, model.UploadStatusFailed, got.Status)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHubBroadcastNeverBlocksWithoutListeners(t *testing.T) {
	hub := NewHub()

	// Saturate the broadcast buffer; the sender must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			hub.BroadcastUploadStatus(&model.UploadUnit{EntityID: "noop"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked")
	}
}
