// Package stomp implements the minimal subset of the STOMP 1.2 framing used
// by the chat backend: client frames CONNECT, SUBSCRIBE, UNSUBSCRIBE, SEND and
// DISCONNECT, server frames CONNECTED, MESSAGE, RECEIPT and ERROR, plus the
// lone-LF heartbeat frame.
package stomp

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type Command string

const (
	CommandConnect     Command = "CONNECT"
	CommandConnected   Command = "CONNECTED"
	CommandSubscribe   Command = "SUBSCRIBE"
	CommandUnsubscribe Command = "UNSUBSCRIBE"
	CommandSend        Command = "SEND"
	CommandMessage     Command = "MESSAGE"
	CommandReceipt     Command = "RECEIPT"
	CommandError       Command = "ERROR"
	CommandDisconnect  Command = "DISCONNECT"
)

// Common header names.
const (
	HeaderDestination   = "destination"
	HeaderID            = "id"
	HeaderSubscription  = "subscription"
	HeaderContentType   = "content-type"
	HeaderContentLength = "content-length"
	HeaderAcceptVersion = "accept-version"
	HeaderHeartBeat     = "heart-beat"
	HeaderAuthorization = "Authorization"
	HeaderMessage       = "message"
)

// Heartbeat is the end-of-line frame either peer sends to signal liveness.
var Heartbeat = []byte{'\n'}

type Frame struct {
	Command Command
	Headers map[string]string
	Body    []byte
}

func NewFrame(command Command, body []byte) *Frame {
	return &Frame{Command: command, Headers: make(map[string]string), Body: body}
}

func (f *Frame) Header(name string) string {
	return f.Headers[name]
}

func (f *Frame) SetHeader(name, value string) *Frame {
	f.Headers[name] = value
	return f
}

// HeartBeat decodes the heart-beat header into (outgoing, incoming) cadences.
// A missing or malformed header means no heartbeats.
func (f *Frame) HeartBeat() (time.Duration, time.Duration) {
	parts := strings.Split(f.Header(HeaderHeartBeat), ",")
	if len(parts) != 2 {
		return 0, 0
	}
	sx, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	sy, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || sx < 0 || sy < 0 {
		return 0, 0
	}
	return time.Duration(sx) * time.Millisecond, time.Duration(sy) * time.Millisecond
}

// Marshal serializes a frame to its wire form: command line, header lines,
// blank line, body, NUL terminator. Headers are written in sorted order so
// the output is deterministic.
func Marshal(f *Frame) []byte {
	var buf bytes.Buffer
	buf.WriteString(string(f.Command))
	buf.WriteByte('\n')

	names := make([]string, 0, len(f.Headers))
	for name := range f.Headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		buf.WriteString(escapeHeader(name))
		buf.WriteByte(':')
		buf.WriteString(escapeHeader(f.Headers[name]))
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

// IsHeartbeat reports whether raw is a bare end-of-line liveness frame.
func IsHeartbeat(raw []byte) bool {
	trimmed := bytes.TrimRight(raw, "\r\n")
	return len(raw) > 0 && len(trimmed) == 0
}

// Parse decodes a single wire frame. Heartbeat frames must be filtered out by
// the caller first (see IsHeartbeat).
func Parse(raw []byte) (*Frame, error) {
	// The terminating NUL and any trailing EOLs after it are not part of the
	// frame proper.
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}

	head, body, found := bytes.Cut(raw, []byte("\n\n"))
	if !found {
		// Tolerate CRLF line endings on the head section.
		head, body, found = bytes.Cut(raw, []byte("\r\n\r\n"))
		if !found {
			return nil, fmt.Errorf("stomp: frame has no header/body separator")
		}
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, fmt.Errorf("stomp: frame has no command line")
	}
	command := Command(lines[0])
	switch command {
	case CommandConnect, CommandConnected, CommandSubscribe, CommandUnsubscribe,
		CommandSend, CommandMessage, CommandReceipt, CommandError, CommandDisconnect:
	default:
		return nil, fmt.Errorf("stomp: unknown command %q", lines[0])
	}

	f := NewFrame(command, body)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("stomp: malformed header line %q", line)
		}
		name = unescapeHeader(name)
		// Per the STOMP spec, only the first occurrence of a repeated header
		// is significant.
		if _, exists := f.Headers[name]; !exists {
			f.Headers[name] = unescapeHeader(value)
		}
	}
	return f, nil
}

var headerEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\r", `\r`,
	":", `\c`,
)

var headerUnescaper = strings.NewReplacer(
	`\\`, `\`,
	`\n`, "\n",
	`\r`, "\r",
	`\c`, ":",
)

func escapeHeader(s string) string   { return headerEscaper.Replace(s) }
func unescapeHeader(s string) string { return headerUnescaper.Replace(s) }
