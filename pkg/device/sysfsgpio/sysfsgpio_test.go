package sysfsgpio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gopowder/pkg/actuator"
)

var _ actuator.Pin = (*Pin)(nil)

// fakeRoot lays out a sysfs tree where line n is already exported.
func fakeRoot(t *testing.T, n string) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "gpio"+n)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "direction"), []byte("in"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "value"), []byte("0"), 0o644))
	return root
}

func read(t *testing.T, root, n, file string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(root, "gpio"+n, file))
	require.NoError(t, err)
	return string(b)
}

func TestPin(t *testing.T) {
	root := fakeRoot(t, "12")

	p, err := Open(root, 12)
	require.NoError(t, err)
	defer p.Close()

	assert.Equal(t, 12, p.Number())
	assert.Equal(t, "low", read(t, root, "12", "direction"))

	p.High()
	assert.Equal(t, "1", read(t, root, "12", "value"))
	p.Low()
	assert.Equal(t, "0", read(t, root, "12", "value"))
}

func TestOpen_ExportFails(t *testing.T) {
	_, err := Open(t.TempDir()+"/missing", 5)
	assert.Error(t, err)
}
