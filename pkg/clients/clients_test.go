package clients

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientManager(t *testing.T) {
	cm := NewClientManager()

	alice := cm.AddClient("alice")
	bob := cm.AddClient("bob")
	assert.NotEqual(t, alice.ID, bob.ID)
	assert.NotEqual(t, alice.Ref, bob.Ref)

	got, err := cm.GetClientByID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, alice, got)
	assert.True(t, cm.Exists(alice.ID))
	assert.Len(t, cm.GetClients(), 2)

	cm.RemoveClient(alice.ID)
	assert.False(t, cm.Exists(alice.ID))
	_, err = cm.GetClientByID(alice.ID)
	assert.Error(t, err)
}

func TestResolveRefIsStableAcrossReconnects(t *testing.T) {
	cm := NewClientManager()

	first := cm.AddClient("alice")
	cm.RemoveClient(first.ID)

	second := cm.AddClient("alice")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, first.Ref, second.Ref)
}
