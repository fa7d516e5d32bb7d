package kamidenv1_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/kamisync/pkg/kamiden/kamidenv1"
	"github.com/argus-labs/kamisync/pkg/protoutil"
)

func TestStreamResponse_FeedPresence(t *testing.T) {
	t.Parallel()

	withFeed := &kamidenv1.StreamResponse{
		Messages: []*kamidenv1.Message{{ID: 1, Kind: "chat", Text: "hi", Timestamp: -5}},
		Feed:     &kamidenv1.Feed{},
	}
	var got kamidenv1.StreamResponse
	require.NoError(t, got.UnmarshalWire(protoutil.Marshal(withFeed)))
	assert.Equal(t, withFeed, &got)

	withoutFeed := &kamidenv1.StreamResponse{Messages: withFeed.Messages}
	require.NoError(t, got.UnmarshalWire(protoutil.Marshal(withoutFeed)))
	assert.Nil(t, got.Feed)
}

func TestStreamResponse_Malformed(t *testing.T) {
	t.Parallel()

	// Field 1 claims a 10 byte message but only 1 byte follows.
	var got kamidenv1.StreamResponse
	require.ErrorIs(t, got.UnmarshalWire([]byte{0x0a, 0x0a, 0x08}), protoutil.ErrMalformed)
}
