// Package calllog writes one CSV call-detail record per completed fax
// session, grounded directly on the teacher's src/log.go: append-mode
// daily-named files, a header line written once per file, flushed
// per-record with encoding/csv. spec.md §3 invariant 5 (statistics
// page count monotonic non-decreasing) and §7 ("a completed session
// returns OK and statistics") are what the t30.Stats passed to
// Writer.Write captures.
package calllog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/xrg/gofax30/dwlog"
	"github.com/xrg/gofax30/t30"
)

var csvHeader = []string{
	"utime", "isotime", "role", "local_ident", "remote_ident",
	"rate", "modem_family", "compression", "resolution", "ecm",
	"pages_transferred", "completion",
}

// Writer appends one CSV row per completed session to a daily-named
// file under dir, matching src/log.go's g_daily_names strategy (one
// file per UTC day, opened for append, a header written only the
// first time a given day's file is created).
type Writer struct {
	log         dwlog.Logger
	dir         string
	namePattern string

	openName string
	fp       *os.File
}

// NewWriter returns a Writer rooted at dir, creating it if necessary.
// Daily file names follow the strftime pattern (default
// "%Y-%m-%d.csv"), matching the teacher's daily_names naming but with
// the portable strftime library (src/xmit.go's strftime.Format call)
// instead of a hand-rolled format.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("calllog: creating %s: %w", dir, err)
	}
	return &Writer{
		log:         dwlog.For("calllog"),
		dir:         dir,
		namePattern: "%Y-%m-%d.csv",
	}, nil
}

// Write appends one record for stats, rotating to a new daily file and
// writing its header if the UTC date has changed since the last call.
func (w *Writer) Write(stats t30.Stats) error {
	now := time.Now().UTC()
	name, err := strftime.Format(w.namePattern, now)
	if err != nil {
		return fmt.Errorf("calllog: formatting file name: %w", err)
	}

	if w.fp != nil && name != w.openName {
		w.Close()
	}
	if w.fp == nil {
		full := filepath.Join(w.dir, name)
		_, statErr := os.Stat(full)
		alreadyThere := statErr == nil

		f, err := os.OpenFile(full, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0o644)
		if err != nil {
			return fmt.Errorf("calllog: opening %s: %w", full, err)
		}
		w.fp = f
		w.openName = name
		w.log.Info("opened call log", "path", full)

		if !alreadyThere {
			cw := csv.NewWriter(w.fp)
			if err := cw.Write(csvHeader); err != nil {
				return err
			}
			cw.Flush()
		}
	}

	cw := csv.NewWriter(w.fp)
	err = cw.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		stats.Role.String(),
		stats.LocalIdent,
		stats.RemoteIdent,
		strconv.Itoa(stats.Rate),
		stats.ModemFamily,
		compressionName(stats.Compression),
		resolutionName(stats.Resolution),
		strconv.FormatBool(stats.ECM),
		strconv.Itoa(stats.PagesTransferred),
		stats.Completion.String(),
	})
	if err != nil {
		return err
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		w.log.Error("calllog CSV write error", "err", err)
		return err
	}
	return nil
}

// Close closes the currently open file, if any.
func (w *Writer) Close() error {
	if w.fp == nil {
		return nil
	}
	err := w.fp.Close()
	w.fp = nil
	w.openName = ""
	return err
}

func compressionName(c t30.Compression) string {
	switch c {
	case t30.CompressionT4_1D:
		return "T4-1D"
	case t30.CompressionT4_2D:
		return "T4-2D"
	case t30.CompressionT6:
		return "T6"
	default:
		return "unknown"
	}
}

func resolutionName(r t30.ResolutionClass) string {
	switch r {
	case t30.ResolutionStandard:
		return "standard"
	case t30.ResolutionFine:
		return "fine"
	case t30.ResolutionSuperFine:
		return "super-fine"
	default:
		return "unknown"
	}
}
