package store_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-labs/kamisync/pkg/mirror/store"
)

func TestPack_BitLayout(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		component uint32
		entity    uint32
		want      uint64
	}{
		{"zero", 0, 0, 0},
		{"component only", 1, 0, 0x0100_0000},
		{"entity only", 0, 7, 0x0000_0007},
		{"concrete example", 1, 7, 0x0100_0007},
		{"max component", store.MaxComponentSlot, 0, 0xFF00_0000},
		{"max entity", 0, store.MaxEntitySlot, 0x00FF_FFFF},
		{"both max", store.MaxComponentSlot, store.MaxEntitySlot, 0xFFFF_FFFF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := store.Pack(tt.component, tt.entity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, uint64(p))
			assert.True(t, p.Valid())

			c, e := p.Unpack()
			assert.Equal(t, tt.component, c)
			assert.Equal(t, tt.entity, e)
		})
	}
}

func TestPack_Overflow(t *testing.T) {
	t.Parallel()

	_, err := store.Pack(store.MaxComponentSlot+1, 0)
	require.ErrorIs(t, err, store.ErrSlotOverflow)

	_, err = store.Pack(0, store.MaxEntitySlot+1)
	require.ErrorIs(t, err, store.ErrSlotOverflow)

	assert.Panics(t, func() { store.MustPack(1<<20, 0) })
}

func TestPackedIndex_Valid(t *testing.T) {
	t.Parallel()

	assert.True(t, store.PackedIndex(0xFFFF_FFFF).Valid())
	assert.False(t, store.PackedIndex(1<<32).Valid())
}
