//go:build windows

package filesystem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mojifix/pkg/contract"
)

// TestMapPathInvalidWindows 卷名、绝对路径与逃逸
func TestMapPathInvalidWindows(t *testing.T) {
	w, err := New(&Options{OutputDir: t.TempDir()})
	require.NoError(t, err)
	for _, rel := range []string{`C:\abs`, "C:rel", `\\srv\share\x`, "..", "."} {
		_, err := w.mapPath(rel)
		assert.ErrorIs(t, err, contract.ErrPathInvalid, rel)
	}
}
