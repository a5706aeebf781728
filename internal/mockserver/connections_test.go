package mockserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Sockets are nil here; the manager only stores them.

func TestConnectionManager_BindAndRemove(t *testing.T) {
	assert := assert.New(t)
	cm := NewConnectionManager()

	cm.AddConnection("conn-1", nil)
	cm.BindPlayer("alice", "conn-1")

	assert.Len(cm.All(), 1)
	assert.Equal("alice", cm.RemoveConnection("conn-1"))
	assert.Empty(cm.All())
	assert.Nil(cm.GetPlayerConnection("alice"))
}

func TestConnectionManager_RemoveUnboundConnection(t *testing.T) {
	cm := NewConnectionManager()
	cm.AddConnection("conn-1", nil)

	assert.Empty(t, cm.RemoveConnection("conn-1"))
	assert.Empty(t, cm.RemoveConnection("missing"))
}

// Why: a player that reconnects keeps only the newest socket
func TestConnectionManager_RebindReplacesOldConnection(t *testing.T) {
	assert := assert.New(t)
	cm := NewConnectionManager()

	cm.AddConnection("conn-1", nil)
	cm.AddConnection("conn-2", nil)
	cm.BindPlayer("alice", "conn-1")
	cm.BindPlayer("alice", "conn-2")

	// Closing the old socket no longer belongs to alice.
	assert.Empty(cm.RemoveConnection("conn-1"))
	assert.Equal("alice", cm.RemoveConnection("conn-2"))
}
