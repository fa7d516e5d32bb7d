package persist

import (
	"context"

	"github.com/rotisserie/eris"
)

// NopStorage keeps nothing. Every sync starts from an empty store.
type NopStorage struct{}

var _ Storage = (*NopStorage)(nil)

func NewNopStorage() *NopStorage {
	return &NopStorage{}
}

func (n *NopStorage) Save(_ context.Context, name string, _ []byte) error {
	return validateName(name)
}

func (n *NopStorage) Load(_ context.Context, name string) ([]byte, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	return nil, eris.Wrap(ErrNotFound, "no stores available (using no-op storage)")
}

func (n *NopStorage) Wipe(_ context.Context, name string) error {
	return validateName(name)
}

func (n *NopStorage) WipeAll(_ context.Context) error {
	return nil
}

func (n *NopStorage) Close() error {
	return nil
}
