// Package ports scans host ports, allocates conflict-free ports per
// service, and rewrites every file that references them.
//
// Scanning and allocation are split on purpose: Scan returns an immutable
// Snapshot, and Allocate computes an allocation from that snapshot with no
// hidden cross-call state. A snapshot is best-effort: another process can
// claim a port between the scan and the service start.
package ports

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	iexec "github.com/builderpro/buildcheck/internal/exec"
)

// conservativeBusyPorts is assumed busy when no scanning tool works.
// Never assume "nothing is busy": these are the ports dev tooling grabs
// most often.
var conservativeBusyPorts = []int{
	80, 443, 3000, 3001, 4200, 5000, 5173, 5174, 8000, 8080, 8081, 8443, 9000,
}

// Snapshot is an immutable view of listening TCP ports at one instant.
type Snapshot struct {
	busy map[int]struct{}
	// Source names the tool that produced the snapshot ("ss", "lsof",
	// or "fallback").
	Source string
	// TakenAt is when the scan ran.
	TakenAt time.Time
}

// Busy reports whether the port was listening when the snapshot was taken.
func (s Snapshot) Busy(port int) bool {
	_, ok := s.busy[port]
	return ok
}

// Ports returns the busy ports in the snapshot.
func (s Snapshot) Ports() []int {
	out := make([]int, 0, len(s.busy))
	for p := range s.busy {
		out = append(out, p)
	}
	return out
}

// Count returns how many ports the snapshot holds.
func (s Snapshot) Count() int {
	return len(s.busy)
}

// Scanner enumerates listening TCP ports via OS tools.
type Scanner struct {
	runner  iexec.CommandRunner
	timeout time.Duration
}

// NewScanner creates a Scanner using the given command runner.
func NewScanner(runner iexec.CommandRunner, timeout time.Duration) *Scanner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Scanner{runner: runner, timeout: timeout}
}

// Scan enumerates listening TCP ports. It tries ss first, falls back to
// lsof, and on total failure returns the conservative hardcoded set.
// The returned error is nil even in the fallback case; callers that care
// can inspect Snapshot.Source.
func (s *Scanner) Scan(ctx context.Context) Snapshot {
	if out, err := s.runner.RunWithTimeout(ctx, s.timeout, "ss", "-tlnH"); err == nil {
		if busy := parseSSOutput(string(out)); len(busy) > 0 {
			return Snapshot{busy: busy, Source: "ss", TakenAt: time.Now()}
		}
	}

	if out, err := s.runner.RunWithTimeout(ctx, s.timeout, "lsof", "-iTCP", "-sTCP:LISTEN", "-P", "-n"); err == nil {
		if busy := parseLsofOutput(string(out)); len(busy) > 0 {
			return Snapshot{busy: busy, Source: "lsof", TakenAt: time.Now()}
		}
	}

	busy := make(map[int]struct{}, len(conservativeBusyPorts))
	for _, p := range conservativeBusyPorts {
		busy[p] = struct{}{}
	}
	return Snapshot{busy: busy, Source: "fallback", TakenAt: time.Now()}
}

// localAddrPortRe pulls the port off an ss local address column, which can
// be "0.0.0.0:3000", "[::]:3000", or "*:3000".
var localAddrPortRe = regexp.MustCompile(`[:\]](\d+)$`)

// parseSSOutput extracts listening ports from `ss -tlnH` output.
// Columns: State Recv-Q Send-Q Local-Address:Port Peer-Address:Port.
func parseSSOutput(out string) map[int]struct{} {
	busy := map[int]struct{}{}

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		local := fields[3]
		// Without the H flag some ss builds still emit a header.
		if strings.Contains(local, "Address") {
			continue
		}
		if m := localAddrPortRe.FindStringSubmatch(local); m != nil {
			if port, err := strconv.Atoi(m[1]); err == nil {
				busy[port] = struct{}{}
			}
		}
	}

	return busy
}

// parseLsofOutput extracts listening ports from
// `lsof -iTCP -sTCP:LISTEN -P -n` output. The NAME column holds addresses
// like "*:3000" or "127.0.0.1:8080".
func parseLsofOutput(out string) map[int]struct{} {
	busy := map[int]struct{}{}

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 9 || fields[0] == "COMMAND" {
			continue
		}
		name := fields[8]
		name = strings.TrimSuffix(name, "(LISTEN)")
		if m := localAddrPortRe.FindStringSubmatch(strings.TrimSpace(name)); m != nil {
			if port, err := strconv.Atoi(m[1]); err == nil {
				busy[port] = struct{}{}
			}
		}
	}

	return busy
}

// SnapshotFromPorts builds a snapshot from explicit ports (for tests and
// for callers replaying a recorded scan).
func SnapshotFromPorts(source string, ports ...int) Snapshot {
	busy := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		busy[p] = struct{}{}
	}
	return Snapshot{busy: busy, Source: source, TakenAt: time.Now()}
}

// String summarizes the snapshot for logs.
func (s Snapshot) String() string {
	return fmt.Sprintf("snapshot(%s, %d busy ports)", s.Source, len(s.busy))
}
