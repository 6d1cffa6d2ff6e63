package pstn

import (
	"github.com/jochenvg/go-udev"

	"github.com/xrg/gofax30/dwlog"
)

// DeviceInfo describes one candidate audio or serial-control device
// the faxgw CLI's --list-devices mode can show, mirroring the
// enumeration src/ptt.go/src/audio.go leave to the operator's manual
// config today.
type DeviceInfo struct {
	Subsystem string // "sound" or "tty"
	Devnode   string
	Vendor    string
	Model     string
}

// DiscoverDevices enumerates sound and tty devices via udev, the same
// enumeration mechanism the teacher's go.mod declares
// (github.com/jochenvg/go-udev) but never wires into a concrete
// feature in the retrieved file subset.
func DiscoverDevices() ([]DeviceInfo, error) {
	log := dwlog.For("pstn")
	u := udev.Udev{}

	var out []DeviceInfo
	for _, subsystem := range []string{"sound", "tty"} {
		e := u.NewEnumerate()
		e.AddMatchSubsystem(subsystem)
		devices, err := e.Devices()
		if err != nil {
			log.Warn("udev enumerate failed", "subsystem", subsystem, "err", err)
			continue
		}
		for _, d := range devices {
			node := d.Devnode()
			if node == "" {
				continue
			}
			out = append(out, DeviceInfo{
				Subsystem: subsystem,
				Devnode:   node,
				Vendor:    d.PropertyValue("ID_VENDOR"),
				Model:     d.PropertyValue("ID_MODEL"),
			})
		}
	}
	return out, nil
}
