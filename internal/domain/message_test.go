package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationKeyOrderIndependent(t *testing.T) {
	for i := 0; i < 20; i++ {
		a, b := uuid.New(), uuid.New()
		assert.Equal(t, ConversationKey(a, b), ConversationKey(b, a))
	}
}

func TestConversationKeySortedJoin(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	key := ConversationKey(b, a)
	assert.Equal(t, a.String()+"_"+b.String(), key)
}

func TestChannelNameMatchesConversationKey(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	assert.Equal(t, ConversationKey(a, b), ChannelName(a, b))
	assert.Equal(t, ChannelName(a, b), ChannelName(b, a))
}

func TestConversationPartner(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	key := ConversationKey(a, b)

	partner, ok := ConversationPartner(key, a)
	require.True(t, ok)
	assert.Equal(t, b, partner)

	partner, ok = ConversationPartner(key, b)
	require.True(t, ok)
	assert.Equal(t, a, partner)

	_, ok = ConversationPartner(key, uuid.New())
	assert.False(t, ok)

	_, ok = ConversationPartner("garbage", a)
	assert.False(t, ok)
}
