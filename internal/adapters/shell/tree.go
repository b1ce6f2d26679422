package shell

import (
	"github.com/shirou/gopsutil/v3/process"
)

// killTree kills pid and every descendant, children first. Descendants that
// left the process group are only reachable this way.
func killTree(pid int) {
	if pid <= 0 {
		return
	}
	p, err := process.NewProcess(int32(pid)) //nolint:gosec // pids fit in int32
	if err != nil {
		return
	}
	killDescendants(p)
	_ = p.Kill()
}

func killDescendants(p *process.Process) {
	children, err := p.Children()
	if err != nil {
		return
	}
	for _, c := range children {
		killDescendants(c)
		_ = c.Kill()
	}
}
