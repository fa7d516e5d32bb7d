package store

import (
	"fmt"

	"github.com/rotisserie/eris"
)

var (
	ErrSlotOverflow          = eris.New("slot does not fit the packed index layout")
	ErrInvalidPackedIndex    = eris.New("packed index has bits outside the layout")
	ErrComponentSlotNotFound = eris.New("component slot is not registered")
	ErrNoDecoder             = eris.New("store has no decoder")
	ErrBatchClosed           = eris.New("batch already committed or discarded")
	ErrUnsupportedSnapshot   = eris.New("unsupported snapshot")
	ErrMissingSentinel       = eris.New("registry does not start with the sentinel id")
)

// RegistryIndexConflict describes a registry entry whose declared index did not match the
// registry tail. The entry is not applied.
type RegistryIndexConflict struct {
	Registry string
	ID       string
	Declared uint32
	Expected uint32
}

func (c RegistryIndexConflict) Error() string {
	return fmt.Sprintf("registry index conflict: %s entry %s declared index %d, expected %d",
		c.Registry, c.ID, c.Declared, c.Expected)
}
