package mcpserver

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, in string) (framing, string, error) {
	t.Helper()
	pr, pw := io.Pipe()
	detected := make(chan framing, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- decodeInput(strings.NewReader(in), pw, detected)
	}()

	f := <-detected
	out, err := io.ReadAll(pr)
	require.NoError(t, err)
	return f, string(out), <-errCh
}

func TestDecodeInput_ContentLengthFraming(t *testing.T) {
	first := `{"jsonrpc":"2.0","id":1,"method":"ping","params":{}}`
	second := `{"jsonrpc":"2.0","id":2,"method":"ping"}`

	f, out, err := decode(t, frame(first)+frame(second))

	assert.Equal(t, framingHeader, f)
	assert.Equal(t, first+"\n"+second+"\n", out)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeInput_NewlineFraming(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "terminated", in: "{\"a\":1}\n{\"b\":2}\n", want: "{\"a\":1}\n{\"b\":2}\n"},
		{name: "single message cut off by EOF", in: `{"a":1}`, want: "{\"a\":1}\n"},
		{name: "last message cut off by EOF", in: "{\"a\":1}\n{\"b\":2}", want: "{\"a\":1}\n{\"b\":2}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, out, err := decode(t, tt.in)

			assert.Equal(t, framingNewline, f)
			assert.Equal(t, tt.want, out)
			assert.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestDecodeInput_EmptyInput(t *testing.T) {
	f, out, err := decode(t, "")
	assert.Equal(t, framingNewline, f, "closed channel yields the default framing")
	assert.Empty(t, out)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeInput_InvalidLength(t *testing.T) {
	_, pw := io.Pipe()
	detected := make(chan framing, 1)
	err := decodeInput(strings.NewReader("Content-Length: nope\r\n\r\n{}"), pw, detected)
	assert.ErrorContains(t, err, "invalid Content-Length")
	assert.Equal(t, framingHeader, <-detected)
}

func TestEncodeOutput(t *testing.T) {
	t.Run("content-length", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, encodeOutput(strings.NewReader("{\"ok\":true}\n\n"), &out, framingHeader))
		assert.Equal(t, "Content-Length: 11\r\n\r\n{\"ok\":true}", out.String())
	})

	t.Run("newline", func(t *testing.T) {
		var out bytes.Buffer
		require.NoError(t, encodeOutput(strings.NewReader("  {\"ok\":true}  \n"), &out, framingNewline))
		assert.Equal(t, "{\"ok\":true}\n", out.String())
	})
}

func TestRun_ContentLengthClient(t *testing.T) {
	stdinR, stdinW := io.Pipe()
	stdoutR, stdoutW := io.Pipe()

	srv := New(Deps{Stdin: stdinR, Stdout: stdoutW})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- srv.Run(ctx)
		_ = stdoutW.Close()
	}()

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-06-18","capabilities":{},"clientInfo":{"name":"framing-test","version":"1.0.0"}}}`
	go func() {
		_, _ = io.WriteString(stdinW, frame(initialize))
	}()

	br := bufio.NewReader(stdoutR)
	header, err := br.ReadString('\n')
	require.NoError(t, err)
	n, ok, err := parseContentLength(header)
	require.NoError(t, err)
	require.True(t, ok, "response should be Content-Length framed, got %q", header)
	require.NoError(t, skipHeaders(br))

	body := make([]byte, n)
	_, err = io.ReadFull(br, body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":1`)
	assert.Contains(t, string(body), ImplementationName)

	_ = stdinW.Close()
	cancel()
	select {
	case <-runErr:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func frame(payload string) string {
	return "Content-Length: " + strconv.Itoa(len(payload)) + "\r\n\r\n" + payload
}
