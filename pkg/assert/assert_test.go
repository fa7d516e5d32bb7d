//go:build !release

package assert_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	kassert "github.com/argus-labs/kamisync/pkg/assert"
)

func TestThat(t *testing.T) {
	t.Parallel()

	assert.NotPanics(t, func() { kassert.That(true, "never") })
	assert.PanicsWithValue(t, "assertion failed: slot 3 != 4", func() {
		kassert.That(false, "slot %d != %d", 3, 4)
	})
}
