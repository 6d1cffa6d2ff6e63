package pstntest

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopbackPortReadWrite(t *testing.T) {
	port, err := Open()
	require.NoError(t, err)
	defer port.Close()

	assert.NotEmpty(t, port.TTYName)

	tty, err := os.OpenFile(port.TTYName, os.O_RDWR, 0)
	require.NoError(t, err)
	defer tty.Close()

	go func() {
		port.Ptmx.Write([]byte("CFR"))
	}()

	buf := make([]byte, 3)
	n, err := tty.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "CFR", string(buf[:n]))
}
