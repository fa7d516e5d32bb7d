package store_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/kamisync/pkg/mirror/decode"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

func TestStore_SerializeRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := schema.NewMapRegistry()
	mixed := schema.Schema{
		Keys:   []string{"level", "balance", "tags", "owner"},
		Values: []schema.ValueType{schema.Uint32, schema.Uint256, schema.Uint8Array, schema.Address},
	}
	require.NoError(t, registry.Register("0xc1", mixed))
	cache := decode.NewCache(registry, decode.WithUnknownPolicy(decode.UnknownAsRaw))
	src := store.New("world", store.WithDecoder(cache))

	require.Empty(t, src.AppendComponents([]store.Entry{{Idx: 1, ID: "0xc1"}, {Idx: 2, ID: "0xc9"}}))
	require.Empty(t, src.AppendEntities([]store.Entry{{Idx: 1, ID: "0xe1"}}))

	args, err := decode.Arguments(mixed)
	require.NoError(t, err)
	raw, err := args.Pack(uint32(7), bigBalance(), []uint8{1, 2}, ownerAddress)
	require.NoError(t, err)
	require.NoError(t, src.PutValue(ctx, store.MustPack(1, 1), raw))
	require.NoError(t, src.PutValue(ctx, store.MustPack(2, 1), []byte{0xAB}))
	src.SetCursors(store.Cursors{
		LastSyncedBlock: 12, LastSyncedComponentIndex: 2, LastSyncedEntityIndex: 1, SchemaEpoch: "0xfe",
	})

	data, err := src.Serialize()
	require.NoError(t, err)

	dst := store.New("world")
	require.NoError(t, dst.Deserialize(data))

	assert.Equal(t, src.Cursors(), dst.Cursors())
	assert.Equal(t, src.ComponentsLen(), dst.ComponentsLen())
	assert.Equal(t, src.EntitiesLen(), dst.EntitiesLen())
	slot, ok := dst.ComponentSlot("0xc9")
	require.True(t, ok)
	assert.Equal(t, uint32(2), slot)

	src.Values(func(p store.PackedIndex, want decode.Record) bool {
		got, ok := dst.GetValue(p)
		require.True(t, ok, p.String())
		assert.Equal(t, want, got)
		return true
	})

	got, ok := dst.GetValue(store.MustPack(2, 1))
	require.True(t, ok)
	assert.True(t, got.Degraded())

	again, err := dst.Serialize()
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestStore_DeserializeRejectsBadSnapshots(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{
			name:    "unknown version",
			data:    `{"version":2,"layout":1,"components":["0x0"],"entities":["0x0"]}`,
			wantErr: store.ErrUnsupportedSnapshot,
		},
		{
			name:    "unknown layout",
			data:    `{"version":1,"layout":2,"components":["0x0"],"entities":["0x0"]}`,
			wantErr: store.ErrUnsupportedSnapshot,
		},
		{
			name:    "missing sentinel",
			data:    `{"version":1,"layout":1,"components":["0xa"],"entities":["0x0"]}`,
			wantErr: store.ErrMissingSentinel,
		},
		{
			name: "duplicate id",
			data: `{"version":1,"layout":1,"components":["0x0"],"entities":["0x0","0xe1","0xe1"]}`,
		},
		{
			name: "not json",
			data: `{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := store.New("world")
			s.SetCursors(store.Cursors{LastSyncedBlock: 4})

			err := s.Deserialize([]byte(tt.data))
			require.Error(t, err)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, uint64(4), s.Cursors().LastSyncedBlock)
		})
	}
}

var ownerAddress = common.HexToAddress("0x00000000000000000000000000000000000000aa")

func bigBalance() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 100)
}
