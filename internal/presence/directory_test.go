package presence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct{ name string }

func (f *fakeConn) Send(payload []byte) bool { return true }

func TestRegisterAndLookup(t *testing.T) {
	dir := NewDirectory()
	userID := uuid.New()
	conn := &fakeConn{name: "a"}

	_, ok := dir.Lookup(userID)
	assert.False(t, ok)

	dir.Register(userID, conn)

	got, ok := dir.Lookup(userID)
	require.True(t, ok)
	assert.Same(t, conn, got.(*fakeConn))
	assert.Equal(t, 1, dir.Len())
}

func TestRegisterLastWriterWins(t *testing.T) {
	dir := NewDirectory()
	userID := uuid.New()
	oldConn := &fakeConn{name: "old"}
	newConn := &fakeConn{name: "new"}

	dir.Register(userID, oldConn)
	dir.Register(userID, newConn)

	got, ok := dir.Lookup(userID)
	require.True(t, ok)
	assert.Same(t, newConn, got.(*fakeConn))
	assert.Equal(t, 1, dir.Len())
}

func TestDeregisterRemovesMatchingHandle(t *testing.T) {
	dir := NewDirectory()
	userID := uuid.New()
	conn := &fakeConn{}

	dir.Register(userID, conn)
	assert.True(t, dir.Deregister(userID, conn))

	_, ok := dir.Lookup(userID)
	assert.False(t, ok)
	assert.Equal(t, 0, dir.Len())
}

func TestStaleDeregisterKeepsNewerMapping(t *testing.T) {
	dir := NewDirectory()
	userID := uuid.New()
	oldConn := &fakeConn{name: "old"}
	newConn := &fakeConn{name: "new"}

	dir.Register(userID, oldConn)
	dir.Register(userID, newConn)

	// Old tab closing must not remove the newer tab's entry.
	assert.False(t, dir.Deregister(userID, oldConn))

	got, ok := dir.Lookup(userID)
	require.True(t, ok)
	assert.Same(t, newConn, got.(*fakeConn))
}

func TestDeregisterUnknownUserIsNoOp(t *testing.T) {
	dir := NewDirectory()
	assert.False(t, dir.Deregister(uuid.New(), &fakeConn{}))
}
