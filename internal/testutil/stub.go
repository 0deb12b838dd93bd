// Package testutil writes stand-ins for the external utilities the daemon drives.
package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// Script writes an executable /bin/sh script named name into dir and returns its path.
func Script(t testing.TB, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}

	return path
}

// SarOutput renders sar -n DEV output whose Average row for iface reports rx and tx kB/s.
func SarOutput(iface string, rx, tx int) string {
	return `Linux 6.1.0 (nas) 	01/01/2024 	_x86_64_	(4 CPU)

12:00:00        IFACE   rxpck/s   txpck/s    rxkB/s    txkB/s   rxcmp/s   txcmp/s  rxmcst/s   %ifutil
12:00:01           lo         0         0         0         0         0         0         0         0
12:00:01 ` + iface + `         3         2         9         9         0         0         0         0

Average:        IFACE   rxpck/s   txpck/s    rxkB/s    txkB/s   rxcmp/s   txcmp/s  rxmcst/s   %ifutil
Average:           lo         0         0         0         0         0         0         0         0
Average: ` + iface + `         3         2 ` + strconv.Itoa(rx) + ` ` + strconv.Itoa(tx) + `         0         0         0         0
`
}

// SarStub writes a fake sar into dir that prints SarOutput and records its arguments in dir/sar.args.
func SarStub(t testing.TB, dir, iface string, rx, tx int) string {
	t.Helper()

	out := filepath.Join(dir, "sar.out")
	if err := os.WriteFile(out, []byte(SarOutput(iface, rx, tx)), 0o644); err != nil {
		t.Fatalf("write sar output: %v", err)
	}

	return Script(t, dir, "sar", `printf '%s\n' "$*" >> "`+filepath.Join(dir, "sar.args")+`"
cat "`+out+`"`)
}
