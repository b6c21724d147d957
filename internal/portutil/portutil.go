// Package portutil picks TCP ports for the web UI.
package portutil

const maxPort = 65535

// Candidates lists the ports to try binding, in order: preferred and up to
// maxAttempts-1 ports above it, then 0 so the OS picks one. Ports past
// 65535 are skipped. A preferred port of 0, or fewer than one attempt,
// yields only preferred.
func Candidates(preferred, maxAttempts int) []int {
	if preferred == 0 || maxAttempts <= 1 {
		return []int{preferred}
	}
	out := make([]int, 0, maxAttempts+1)
	for i := range maxAttempts {
		port := preferred + i
		if port > maxPort {
			break
		}
		out = append(out, port)
	}
	return append(out, 0)
}
