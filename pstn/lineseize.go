package pstn

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/term"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/sys/unix"

	"github.com/xrg/gofax30/dwlog"
)

// setRTS toggles the RTS modem-control line, the same
// unix.IoctlGetInt/TIOCMSET dance as src/ptt.go's RTS_ON/RTS_OFF.
func setRTS(t *term.Term, on bool) error {
	fd := int(t.Fd())
	bits, err := unix.IoctlGetInt(fd, unix.TIOCMGET)
	if err != nil {
		return fmt.Errorf("pstn: TIOCMGET: %w", err)
	}
	if on {
		bits |= unix.TIOCM_RTS
	} else {
		bits &^= unix.TIOCM_RTS
	}
	return unix.IoctlSetInt(fd, unix.TIOCMSET, bits)
}

// LineSeize is the narrow interface the faxgw CLI wires to whatever
// signaling mechanism asserts/deasserts the off-hook relay on a real
// FXO/FXS line — the fax-domain analogue of the teacher's PTT keying.
type LineSeize interface {
	Assert() error
	Deassert() error
	Close() error
}

// SerialLineSeize asserts line-seize via RTS on a serial control line,
// directly repurposing src/ptt.go's RTS_ON/RTS_OFF from keying a radio
// transmitter to seizing a telephone line.
type SerialLineSeize struct {
	log  dwlog.Logger
	port *term.Term
}

// OpenSerialLineSeize opens device (e.g. "/dev/ttyUSB0") for RTS-based
// line-seize signaling.
func OpenSerialLineSeize(device string) (*SerialLineSeize, error) {
	t, err := term.Open(device, term.RawMode)
	if err != nil {
		return nil, fmt.Errorf("pstn: opening %s: %w", device, err)
	}
	return &SerialLineSeize{log: dwlog.For("pstn"), port: t}, nil
}

// Assert raises RTS, seizing the line.
func (s *SerialLineSeize) Assert() error {
	return setRTS(s.port, true)
}

// Deassert lowers RTS, releasing the line.
func (s *SerialLineSeize) Deassert() error {
	return setRTS(s.port, false)
}

func (s *SerialLineSeize) Close() error {
	return s.port.Close()
}

// GPIOLineSeize asserts line-seize via a Linux GPIO line, for embedded
// FXO/FXS gateway boards — the teacher's alternate GPIO PTT-keying path
// in src/ptt.go, repurposed the same way as SerialLineSeize.
type GPIOLineSeize struct {
	log    dwlog.Logger
	line   *gpiocdev.Line
	active int // logic level meaning "line seized"
}

// OpenGPIOLineSeize requests offset on chip (e.g. "gpiochip0") as an
// output line. activeHigh selects which logic level asserts seizure.
func OpenGPIOLineSeize(chip string, offset int, activeHigh bool) (*GPIOLineSeize, error) {
	active := 1
	if !activeHigh {
		active = 0
	}
	line, err := gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(1-active))
	if err != nil {
		return nil, fmt.Errorf("pstn: requesting %s:%d: %w", chip, offset, err)
	}
	return &GPIOLineSeize{log: dwlog.For("pstn"), line: line, active: active}, nil
}

func (g *GPIOLineSeize) Assert() error {
	return g.line.SetValue(g.active)
}

func (g *GPIOLineSeize) Deassert() error {
	return g.line.SetValue(1 - g.active)
}

func (g *GPIOLineSeize) Close() error {
	return g.line.Close()
}

// OpenLineSeize dispatches spec ("serial:/dev/ttyUSB0" or
// "gpio:gpiochip0:17") to the matching constructor, the config-driven
// convenience faxgw's CLI uses so an operator chooses the mechanism by
// editing one YAML string rather than a code path.
func OpenLineSeize(spec string) (LineSeize, error) {
	parts := strings.Split(spec, ":")
	switch parts[0] {
	case "serial":
		if len(parts) != 2 {
			return nil, fmt.Errorf("pstn: bad serial line-seize spec %q, want serial:<device>", spec)
		}
		return OpenSerialLineSeize(parts[1])
	case "gpio":
		if len(parts) != 3 {
			return nil, fmt.Errorf("pstn: bad gpio line-seize spec %q, want gpio:<chip>:<offset>", spec)
		}
		offset, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("pstn: bad gpio offset in %q: %w", spec, err)
		}
		return OpenGPIOLineSeize(parts[1], offset, true)
	default:
		return nil, fmt.Errorf("pstn: unknown line-seize mechanism %q", spec)
	}
}
