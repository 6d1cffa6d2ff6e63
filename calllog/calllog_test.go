package calllog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xrg/gofax30/t30"
)

func TestWriteCreatesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir)
	require.NoError(t, err)

	stats := t30.Stats{
		Role:             t30.RoleCaller,
		LocalIdent:       "+15551234567",
		RemoteIdent:      "+15557654321",
		Rate:             9600,
		ModemFamily:      "V.29",
		PagesTransferred: 1,
		Completion:       t30.CompletionOK,
	}
	require.NoError(t, w.Write(stats))
	require.NoError(t, w.Write(stats))
	require.NoError(t, w.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	lines := splitLines(string(data))
	assert.Equal(t, "utime,isotime,role,local_ident,remote_ident,rate,modem_family,compression,resolution,ecm,pages_transferred,completion", lines[0])
	assert.Len(t, lines, 3) // header + 2 records
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
