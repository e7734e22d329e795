package control

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// residentSetSizeBytes reads the process's peak resident set size
// (ru_maxrss) for the GET_STATS diagnostic payload, grounded on
// five82-reel/internal/util/tempfile.go's direct, unguarded use of
// golang.org/x/sys/unix (that file calls unix.Statfs the same way, with no
// build-tag gate, since the teacher corpus targets Linux hosts).
func residentSetSizeBytes() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	// Linux reports ru_maxrss in kilobytes.
	return ru.Maxrss * 1024
}

// signalNumber translates a received os.Signal into its POSIX signal
// number, or 0 for a signal that is not a syscall.Signal. Nothing in this
// package calls it; SHUTDOWN replies carry no signal number.
func signalNumber(sig os.Signal) int {
	if s, ok := sig.(syscall.Signal); ok {
		return int(s)
	}
	return 0
}
