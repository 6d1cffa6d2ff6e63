package t30

import (
	"fmt"

	"github.com/xrg/gofax30/modem"
)

func errInvalidFamilyRate(f modem.Family, r modem.Rate) error {
	return fmt.Errorf("t30: %s is not a valid rate for %s", r, f)
}

func errScanLineWidthCode(code byte) error {
	return fmt.Errorf("t30: scan line width code %d out of range", code)
}

func errMinScanLineTimeCode(code byte) error {
	return fmt.Errorf("t30: min scan line time code %d out of range", code)
}

func errShortCapabilities(n int) error {
	return fmt.Errorf("t30: capabilities payload too short (%d octets)", n)
}

func errUnknownFamilyBits(bits byte) error {
	return fmt.Errorf("t30: unknown modem-family selector 0x%x", bits)
}
