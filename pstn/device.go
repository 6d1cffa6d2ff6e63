// Package pstn provides the audio-port and line-seize glue a terminal
// (non-gateway) faxgw process needs to sit on a real PSTN line: a
// portaudio full-duplex 8 kHz stream satisfying spec.md §6's
// rx_process/tx_process contract, and two alternative line-seize
// (off-hook / loop-current) signaling mechanisms that play the fax
// domain's analogue of the teacher's PTT keying.
//
// Grounded on src/audio.go (device-parameter shape) and src/ptt.go
// (serial RTS/DTR and GPIO keying, repurposed here from "key the radio
// transmitter" to "seize the line").
package pstn

import (
	"fmt"

	"github.com/gordonklaus/portaudio"

	"github.com/xrg/gofax30/dwlog"
)

// SampleRate is the PCM rate spec.md §6 fixes for rx_process/tx_process.
const SampleRate = 8000

// Device is a full-duplex 8 kHz mono portaudio stream in blocking mode:
// Read and Write copy between the caller's buffer and the stream's own
// input and output blocks, matching the single-threaded cooperative
// model of spec.md §5 (there is no callback goroutine; the session is
// only called from the caller's goroutine).
type Device struct {
	log    dwlog.Logger
	stream *portaudio.Stream

	in  []int16
	out []int16
}

// OpenDefault opens the system default input and output devices at
// SampleRate with framesPerBuffer-sized blocks.
func OpenDefault(framesPerBuffer int) (*Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("pstn: portaudio init: %w", err)
	}
	d := &Device{
		log: dwlog.For("pstn"),
		in:  make([]int16, framesPerBuffer),
		out: make([]int16, framesPerBuffer),
	}
	stream, err := portaudio.OpenDefaultStream(1, 1, SampleRate, framesPerBuffer, d.in, d.out)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("pstn: opening default stream: %w", err)
	}
	d.stream = stream
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("pstn: starting stream: %w", err)
	}
	return d, nil
}

// Read blocks for one period and copies the captured samples into buf
// (which must be framesPerBuffer long), for the caller to hand to
// Session.ReceiveAudio.
func (d *Device) Read(buf []int16) error {
	if err := d.stream.Read(); err != nil {
		return fmt.Errorf("pstn: read: %w", err)
	}
	copy(buf, d.in)
	return nil
}

// Write blocks for one period and plays buf (the samples
// Session.TransmitAudio produced) to the output device.
func (d *Device) Write(buf []int16) error {
	copy(d.out, buf)
	if err := d.stream.Write(); err != nil {
		return fmt.Errorf("pstn: write: %w", err)
	}
	return nil
}

// Close stops the stream and releases the portaudio library handle.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	err := d.stream.Close()
	portaudio.Terminate()
	return err
}
