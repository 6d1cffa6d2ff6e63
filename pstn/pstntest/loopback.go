// Package pstntest provides a loopback serial double for exercising
// pstn.SerialLineSeize without real FXO hardware, directly reusing the
// teacher's src/kiss.go / src/serial_port.go trick of fabricating a
// virtual TTY pair with github.com/creack/pty instead of opening a
// physical device node.
package pstntest

import (
	"fmt"
	"os"

	"github.com/creack/pty"
)

// LoopbackPort is a connected pty/tty pair. Ptmx is the master side a
// test can read/write to observe what was sent to the "line"; TTYName
// is the slave device path pstn.OpenSerialLineSeize can open exactly
// as it would a real /dev/ttyUSB0.
type LoopbackPort struct {
	Ptmx    *os.File
	TTYName string

	tty *os.File
}

// Open creates a fresh pty/tty pair.
func Open() (*LoopbackPort, error) {
	ptmx, tty, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("pstntest: opening pty: %w", err)
	}
	return &LoopbackPort{Ptmx: ptmx, TTYName: tty.Name(), tty: tty}, nil
}

// Close releases both ends of the pair.
func (l *LoopbackPort) Close() error {
	err1 := l.tty.Close()
	err2 := l.Ptmx.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
