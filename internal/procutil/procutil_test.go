package procutil_test

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/minidoracat/mcp-feedback-enhanced/internal/procutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartWithCleanup_ChildDiesWhenKilled(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix sleep command")
	}

	cmd := exec.Command("sleep", "60")
	require.NoError(t, procutil.StartWithCleanup(cmd))

	pid := cmd.Process.Pid
	assert.True(t, processExists(pid), "child should be alive after start")

	require.NoError(t, procutil.KillTree(cmd))
	_ = cmd.Wait()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, processExists(pid), "child should be dead after kill")
}

func TestKillTree_ReachesGrandchildren(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix shell")
	}

	cmd := procutil.ShellCommand(context.Background(), "sleep 60 & echo $!; wait")
	stdout, err := cmd.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, procutil.StartWithCleanup(cmd))

	line, err := bufio.NewReader(stdout).ReadString('\n')
	require.NoError(t, err)
	grandchild, err := strconv.Atoi(strings.TrimSpace(line))
	require.NoError(t, err)
	require.True(t, processExists(grandchild))

	require.NoError(t, procutil.KillTree(cmd))
	_ = cmd.Wait()

	assert.Eventually(t, func() bool { return !processExists(grandchild) }, 2*time.Second, 50*time.Millisecond)
}

func TestKillTree_NotStarted(t *testing.T) {
	assert.NoError(t, procutil.KillTree(nil))
	assert.NoError(t, procutil.KillTree(exec.Command("true")))
}

func TestShellCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("test uses unix shell")
	}

	out, err := procutil.ShellCommand(context.Background(), "echo hello && echo world").Output()
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", string(out))
}

// processExists treats zombies as dead: an orphaned grandchild may wait a
// while for its reaper inside containers.
func processExists(pid int) bool {
	if stat, err := os.ReadFile("/proc/" + strconv.Itoa(pid) + "/stat"); err == nil {
		fields := strings.Fields(string(stat))
		return len(fields) > 2 && fields[2] != "Z"
	}
	err := exec.Command("kill", "-0", strconv.Itoa(pid)).Run()
	return err == nil
}
