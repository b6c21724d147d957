package web

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/procutil"
)

// runCommand starts line in the session's project directory, replacing any
// command that is still running. Output is streamed line by line.
func (m *Manager) runCommand(s *Session, line string) {
	m.stopCommand(s)

	if strings.TrimSpace(line) == "" {
		s.send(outbound{Type: msgLog, Data: "Please enter a command to run\n"})
		return
	}

	s.appendLog("$ " + line + "\n")

	cmd := procutil.ShellCommand(context.Background(), line)
	cmd.Dir = s.ProjectDirectory

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		m.commandFailed(s, err)
		return
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		m.commandFailed(s, err)
		return
	}
	if err := procutil.StartWithCleanup(cmd); err != nil {
		m.commandFailed(s, err)
		return
	}
	s.setCommand(cmd)
	m.log.Debug("command started", "session_id", s.ID, "pid", cmd.Process.Pid, "command", line)

	var wg sync.WaitGroup
	wg.Add(2)
	go m.streamOutput(&wg, s, stdout)
	go m.streamOutput(&wg, s, stderr)

	go func() {
		// Pipes must be drained before Wait.
		wg.Wait()
		_ = cmd.Wait()
		code := cmd.ProcessState.ExitCode()

		if !s.releaseCommand(cmd) {
			return
		}
		result := "success"
		if code != 0 {
			result = "failure"
		}
		m.metrics.CommandFinished(result)
		m.log.Debug("command exited", "session_id", s.ID, "exit_code", code)

		s.appendLog(fmt.Sprintf("\nProcess exited with code %d\n", code))
		s.send(outbound{Type: msgProcessCompleted, ExitCode: &code})
	}()
}

func (m *Manager) streamOutput(wg *sync.WaitGroup, s *Session, r io.Reader) {
	defer wg.Done()
	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			s.appendLog(strings.ToValidUTF8(line, "�"))
		}
		if err != nil {
			return
		}
	}
}

func (m *Manager) commandFailed(s *Session, err error) {
	m.log.Warn("command failed to start", "session_id", s.ID, "error", err)
	m.metrics.CommandFinished("error")
	s.appendLog(fmt.Sprintf("Error running command: %v\n", err))
}

// stopCommand kills the running command's process tree, if any.
func (m *Manager) stopCommand(s *Session) {
	cmd := s.takeCommand()
	if cmd == nil {
		return
	}
	if err := procutil.KillTree(cmd); err != nil {
		m.log.Warn("stopping command failed", "session_id", s.ID, "error", err)
		s.send(outbound{Type: msgLog, Data: fmt.Sprintf("\nError stopping process: %v\n", err)})
		return
	}
	m.metrics.CommandFinished("stopped")
	s.send(outbound{Type: msgLog, Data: "\nProcess stopped\n"})
}
