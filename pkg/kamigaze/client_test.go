package kamigaze_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	riftcreds "pkg.world.dev/world-engine/rift/credentials"

	"github.com/argus-labs/kamisync/pkg/kamigaze"
	"github.com/argus-labs/kamisync/pkg/kamigaze/memserver"
	"github.com/argus-labs/kamisync/pkg/mirror/store"
	"github.com/argus-labs/kamisync/pkg/mirror/syncer"
)

func TestClient_GetStateBlock(t *testing.T) {
	t.Parallel()

	world := memserver.New([]byte{0x00, 0xab})
	world.Commit()
	world.Commit()
	client, _ := serve(t, world)

	head, err := client.GetStateBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, syncer.StateBlock{BlockNumber: 2, SchemaEpoch: "0xab"}, head)
}

func TestClient_GetComponents(t *testing.T) {
	t.Parallel()

	world := memserver.New([]byte{0x01})
	world.AddComponent([]byte{0xc1})
	world.AddComponent([]byte{0x0c, 0x02})
	world.AddComponent([]byte{0xc3})
	client, _ := serve(t, world)

	got, err := client.GetComponents(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []store.Entry{{Idx: 2, ID: "0xc02"}, {Idx: 3, ID: "0xc3"}}, got)

	got, err = client.GetComponents(context.Background(), 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_EachEntitiesPages(t *testing.T) {
	t.Parallel()

	world := memserver.New([]byte{0x01})
	for i := range 5 {
		world.AddEntity([]byte{0xe0 + byte(i)})
	}
	client, _ := serve(t, world)

	var pages [][]store.Entry
	err := client.EachEntities(context.Background(), 0, 2, func(page []store.Entry) error {
		pages = append(pages, page)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0], 3)
	assert.Len(t, pages[1], 2)
	assert.Equal(t, store.Entry{Idx: 5, ID: "0xe4"}, pages[1][1])
}

func TestClient_EachEntitiesStopsOnCallbackError(t *testing.T) {
	t.Parallel()

	world := memserver.New([]byte{0x01})
	for i := range 4 {
		world.AddEntity([]byte{byte(i + 1)})
	}
	client, _ := serve(t, world)

	boom := errors.New("boom")
	calls := 0
	err := client.EachEntities(context.Background(), 0, 4, func([]store.Entry) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestClient_EachState(t *testing.T) {
	t.Parallel()

	world := memserver.New([]byte{0x01})
	p1 := uint64(store.MustPack(1, 1))
	p2 := uint64(store.MustPack(1, 2))
	p3 := uint64(store.MustPack(2, 1))
	world.Commit(memserver.Set(p1, []byte{1}), memserver.Set(p2, []byte{2}))
	world.Commit(memserver.Remove(p2), memserver.Set(p3, []byte{3}), memserver.Set(p1, []byte{4}))
	client, _ := serve(t, world)

	collect := func(fromBlock uint64, removals bool) []syncer.StateEntry {
		var out []syncer.StateEntry
		require.NoError(t, client.EachState(context.Background(), fromBlock, 3, removals,
			func(page []syncer.StateEntry) error {
				out = append(out, page...)
				return nil
			}))
		return out
	}

	assert.Equal(t, []syncer.StateEntry{
		{PackedIndex: store.PackedIndex(p1), Data: []byte{4}},
		{PackedIndex: store.PackedIndex(p3), Data: []byte{3}},
	}, collect(0, false))
	assert.Equal(t, []syncer.StateEntry{{PackedIndex: store.PackedIndex(p2)}}, collect(1, true))
	assert.Empty(t, collect(2, false))
}

func TestClient_TransportError(t *testing.T) {
	t.Parallel()

	// No service registered: every call is unimplemented.
	client, _ := serve(t, nil)

	_, err := client.GetStateBlock(context.Background())
	var terr *kamigaze.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "GetStateBlock", terr.Method)
	assert.Equal(t, codes.Unimplemented, terr.Code)
	assert.False(t, terr.Temporary())

	err = client.EachState(context.Background(), 0, 1, false, func([]syncer.StateEntry) error { return nil })
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "GetState", terr.Method)
}

func TestClient_ZeroChunksIsInvalid(t *testing.T) {
	t.Parallel()

	client, _ := serve(t, memserver.New([]byte{0x01}))

	err := client.EachEntities(context.Background(), 0, 0, func([]store.Entry) error { return nil })
	var terr *kamigaze.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, codes.InvalidArgument, terr.Code)
	assert.False(t, terr.Temporary())

	err = client.EachState(context.Background(), 0, 0, true, func([]syncer.StateEntry) error { return nil })
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "GetState", terr.Method)
	assert.Equal(t, codes.InvalidArgument, terr.Code)
}

func TestClient_Canceled(t *testing.T) {
	t.Parallel()

	client, _ := serve(t, memserver.New([]byte{0x01}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetComponents(ctx, 0)
	var terr *kamigaze.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, codes.Canceled, terr.Code)
}

func TestClient_SendsAPIKey(t *testing.T) {
	t.Parallel()

	keys := make(chan []string, 1)
	cfg := kamigaze.Config{URL: "passthrough:///bufnet", APIKey: "secret"}
	client, _ := serveConfig(t, memserver.New([]byte{0x01}), cfg, grpc.UnaryInterceptor(
		func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
			md, _ := metadata.FromIncomingContext(ctx)
			keys <- md.Get(riftcreds.TokenKey)
			return handler(ctx, req)
		}))

	_, err := client.GetStateBlock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"secret"}, <-keys)
}

func TestDial_RequiresURL(t *testing.T) {
	t.Parallel()

	_, err := kamigaze.Dial(kamigaze.Config{})
	require.Error(t, err)
}
