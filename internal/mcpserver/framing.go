package mcpserver

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// framing is the stdio message framing used by a client. The SDK transport
// always speaks newline-delimited JSON; some clients still send LSP-style
// Content-Length headers instead.
type framing int

const (
	framingNewline framing = iota
	framingHeader
)

func (f framing) String() string {
	if f == framingHeader {
		return "content-length"
	}
	return "newline"
}

// stdioBridge sits between the process streams and the SDK transport. The
// first input line decides the framing used in both directions.
type stdioBridge struct {
	in  io.Reader
	out io.Writer

	sdkIn   *io.PipeReader
	toSDK   *io.PipeWriter
	fromSDK *io.PipeReader
	sdkOut  *io.PipeWriter

	errs chan error
}

func newStdioBridge(in io.Reader, out io.Writer) *stdioBridge {
	b := &stdioBridge{in: in, out: out, errs: make(chan error, 2)}
	b.sdkIn, b.toSDK = io.Pipe()
	b.fromSDK, b.sdkOut = io.Pipe()
	return b
}

// transport is what the SDK server reads from and writes to.
func (b *stdioBridge) transport() mcp.Transport {
	return &mcp.IOTransport{Reader: b.sdkIn, Writer: b.sdkOut}
}

// start launches the input and output pumps.
func (b *stdioBridge) start(log *slog.Logger) {
	detected := make(chan framing, 1)
	go func() {
		b.errs <- decodeInput(b.in, b.toSDK, detected)
	}()
	go func() {
		f := <-detected
		log.Debug("framing detected", "framing", f.String())
		b.errs <- encodeOutput(b.fromSDK, b.out, f)
	}()
}

func (b *stdioBridge) close() {
	_ = b.sdkIn.Close()
	_ = b.sdkOut.Close()
	_ = b.fromSDK.Close()
	_ = b.toSDK.Close()
}

// err returns the first pump failure, if one is already known. End of input
// and closed pipes are how a session normally ends and are not reported.
func (b *stdioBridge) err() error {
	select {
	case err := <-b.errs:
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
			return err
		}
	default:
	}
	return nil
}

// decodeInput copies client messages from src to dst as newline-delimited
// JSON and reports the framing it detected on the first line.
func decodeInput(src io.Reader, dst *io.PipeWriter, detected chan<- framing) error {
	defer close(detected)
	defer func() { _ = dst.Close() }()

	br := bufio.NewReader(src)
	first, err := readLine(br)
	if err != nil {
		return err
	}

	if _, isHeader, _ := parseContentLength(first); !isHeader {
		detected <- framingNewline
		for {
			if _, err := io.WriteString(dst, first); err != nil {
				return err
			}
			first, err = readLine(br)
			if err != nil {
				return err
			}
		}
	}

	detected <- framingHeader
	line := first
	for {
		n, isHeader, err := parseContentLength(line)
		if err != nil {
			return err
		}
		if isHeader {
			if err := skipHeaders(br); err != nil {
				return err
			}
			payload := make([]byte, n, n+1)
			if _, err := io.ReadFull(br, payload); err != nil {
				return err
			}
			if _, err := dst.Write(append(payload, '\n')); err != nil {
				return err
			}
		}
		line, err = readLine(br)
		if err != nil {
			return err
		}
	}
}

// readLine returns the next line including its newline. A final line cut
// off by EOF is returned with a newline added; io.EOF is only returned when
// nothing is left.
func readLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		return line + "\n", nil
	}
	return line, err
}

// skipHeaders consumes the remaining header lines up to the blank separator.
func skipHeaders(br *bufio.Reader) error {
	for {
		h, err := br.ReadString('\n')
		if err != nil {
			return err
		}
		if strings.TrimSpace(h) == "" {
			return nil
		}
	}
}

// parseContentLength parses a "Content-Length: N" header line. isHeader is
// set whenever the line names the header, even when the value is invalid.
func parseContentLength(line string) (n int, isHeader bool, err error) {
	name, value, found := strings.Cut(strings.TrimSpace(line), ":")
	if !found || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
		return 0, false, nil
	}
	value = strings.TrimSpace(value)
	n, err = strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, true, fmt.Errorf("invalid Content-Length %q", value)
	}
	return n, true, nil
}

// encodeOutput copies newline-delimited messages from src to dst in the
// client's framing, flushing after every message.
func encodeOutput(src io.Reader, dst io.Writer, f framing) error {
	br := bufio.NewReader(src)
	bw := bufio.NewWriter(dst)
	defer bw.Flush()

	for {
		line, err := br.ReadString('\n')
		if msg := strings.TrimSpace(line); msg != "" {
			var werr error
			if f == framingHeader {
				_, werr = fmt.Fprintf(bw, "Content-Length: %d\r\n\r\n%s", len(msg), msg)
			} else {
				_, werr = bw.WriteString(msg + "\n")
			}
			if werr == nil {
				werr = bw.Flush()
			}
			if werr != nil {
				return werr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
