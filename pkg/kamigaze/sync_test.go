package kamigaze_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/kamisync/pkg/kamigaze/memserver"
	"github.com/argus-labs/kamisync/pkg/mirror/decode"
	"github.com/argus-labs/kamisync/pkg/mirror/schema"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

var valueSchema = schema.Schema{Keys: []string{"value"}, Values: []schema.ValueType{schema.Uint32}}

func pack(t *testing.T, v uint32) []byte {
	t.Helper()
	args, err := decode.Arguments(valueSchema)
	require.NoError(t, err)
	raw, err := args.Pack(v)
	require.NoError(t, err)
	return raw
}

func TestSync_OverGRPC(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	world := memserver.New([]byte{0x01})
	c := world.AddComponent([]byte{0xc1})
	for i := range 7 {
		world.AddEntity([]byte{0xe0, byte(i)})
	}
	p := store.MustPack(c, 7)
	world.Commit(memserver.Set(uint64(p), pack(t, 42)))

	client, _ := serve(t, world)
	registry := schema.NewMapRegistry()
	require.NoError(t, registry.Register("0xc1", valueSchema))
	st := store.New("grpc", store.WithDecoder(decode.NewCache(registry)))
	s, err := syncer.New(client, syncer.WithNumChunks(3))
	require.NoError(t, err)

	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)
	v, ok := st.GetValue(p)
	require.True(t, ok)
	assert.Equal(t, decode.Record{"value": int64(42)}, v)
	id, ok := st.GetEntityID(7)
	require.True(t, ok)
	assert.Equal(t, "0xe006", id)

	world.Commit(memserver.Remove(uint64(p)))
	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)
	_, ok = st.GetValue(p)
	assert.False(t, ok)
	assert.Equal(t, uint64(2), st.Cursors().LastSyncedBlock)

	world.Redeploy([]byte{0x02})
	world.AddComponent([]byte{0xc1})
	world.Commit()
	_, err = s.Sync(ctx, st, nil)
	require.NoError(t, err)
	assert.Equal(t, "0x2", st.Cursors().SchemaEpoch)
	assert.Equal(t, 1, st.EntitiesLen())
}

func TestLoadFixture(t *testing.T) {
	t.Parallel()

	fixture := `{
		"epoch": "0x01",
		"components": ["0xC1"],
		"entities": ["0xe1", "0xe2"],
		"blocks": [
			[{"component": "0xc1", "entity": "0xe1", "data": "0x` + strings.Repeat("0", 62) + `2a"},
			 {"component": "0xc1", "entity": "0xe2", "data": "0x` + strings.Repeat("0", 62) + `07"}],
			[{"component": "0xc1", "entity": "0xe2", "removed": true}]
		]
	}`
	world, err := memserver.LoadFixture(strings.NewReader(fixture))
	require.NoError(t, err)

	client, _ := serve(t, world)
	head, err := client.GetStateBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), head.BlockNumber)

	registry := schema.NewMapRegistry()
	require.NoError(t, registry.Register("0xc1", valueSchema))
	st := store.New("fixture", store.WithDecoder(decode.NewCache(registry)))
	s, err := syncer.New(client)
	require.NoError(t, err)
	_, err = s.Sync(context.Background(), st, nil)
	require.NoError(t, err)

	v, ok := st.GetValue(store.MustPack(1, 1))
	require.True(t, ok)
	assert.Equal(t, int64(42), v["value"])
	_, ok = st.GetValue(store.MustPack(1, 2))
	assert.False(t, ok)
}

func TestLoadFixture_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		fixture string
	}{
		{"not json", `{`},
		{"bad epoch", `{"epoch": "0xzz"}`},
		{"unknown component", `{"epoch": "0x1", "entities": ["0x1"], "blocks": [[{"component": "0x9", "entity": "0x1"}]]}`},
		{"bad data", `{"epoch": "0x1", "components": ["0x1"], "entities": ["0x1"],
			"blocks": [[{"component": "0x1", "entity": "0x1", "data": "0x1"}]]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := memserver.LoadFixture(strings.NewReader(tc.fixture))
			require.Error(t, err)
		})
	}
}
