package store

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// PackedIndex keys a value in the state map. It packs a component slot and an entity slot into one
// integer using the layout shared with the Kamigaze server.
type PackedIndex uint64

// Layout identifies a PackedIndex bit arrangement. It is written into persisted snapshots so a
// snapshot packed with a different layout is never loaded.
type Layout uint8

// LayoutV1 packs the tuple (component, entity) with element widths [8, 24]:
//
//	bits 32..63  zero
//	bits 24..31  component slot
//	bits  0..23  entity slot
const LayoutV1 Layout = 1

const (
	entityBits    = 24
	componentBits = 8

	// MaxComponentSlot and MaxEntitySlot are the largest slots LayoutV1 can address.
	MaxComponentSlot = 1<<componentBits - 1
	MaxEntitySlot    = 1<<entityBits - 1
)

// Pack returns the packed index of (componentSlot, entitySlot).
func Pack(componentSlot, entitySlot uint32) (PackedIndex, error) {
	if componentSlot > MaxComponentSlot {
		return 0, eris.Wrapf(ErrSlotOverflow, "component slot %d exceeds %d", componentSlot, MaxComponentSlot)
	}
	if entitySlot > MaxEntitySlot {
		return 0, eris.Wrapf(ErrSlotOverflow, "entity slot %d exceeds %d", entitySlot, MaxEntitySlot)
	}
	return PackedIndex(uint64(componentSlot)<<entityBits | uint64(entitySlot)), nil
}

// MustPack is Pack for slots known to be in range. It panics otherwise.
func MustPack(componentSlot, entitySlot uint32) PackedIndex {
	p, err := Pack(componentSlot, entitySlot)
	if err != nil {
		panic(eris.ToString(err, false))
	}
	return p
}

// Unpack returns the component and entity slots of p.
func (p PackedIndex) Unpack() (componentSlot, entitySlot uint32) {
	return p.ComponentSlot(), p.EntitySlot()
}

func (p PackedIndex) ComponentSlot() uint32 {
	return uint32(p>>entityBits) & MaxComponentSlot
}

func (p PackedIndex) EntitySlot() uint32 {
	return uint32(p) & MaxEntitySlot
}

// Valid reports whether p has no bits set outside the layout.
func (p PackedIndex) Valid() bool {
	return p>>(entityBits+componentBits) == 0
}

func (p PackedIndex) String() string {
	return fmt.Sprintf("%d(c=%d,e=%d)", uint64(p), p.ComponentSlot(), p.EntitySlot())
}
