// Package protocol parses the newline-delimited control-channel commands.
package protocol

import (
	"bytes"
	"strings"

	"pacenotes/internal/domain"
)

// Parse splits a received chunk into commands in arrival order.
// Blank lines are skipped; malformed or unknown verbs are returned as-is and
// left for the controller to reject.
func Parse(chunk []byte) []domain.Command {
	text := strings.TrimSpace(string(chunk))
	if text == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	commands := make([]domain.Command, 0, len(lines))
	for _, line := range lines {
		command, ok := ParseLine(line)
		if !ok {
			continue
		}
		commands = append(commands, command)
	}
	return commands
}

// ParseLine parses one line. It reports false for a line with no tokens.
func ParseLine(line string) (domain.Command, bool) {
	line = strings.TrimRight(line, "\r")
	if strings.TrimSpace(line) == "" {
		return domain.Command{}, false
	}

	parts := strings.Split(line, " ")
	command := domain.Command{Verb: domain.Verb(parts[0]), Raw: line}
	if len(parts) > 1 {
		command.Args = parts[1:]
	}
	return command, true
}

// LineBuffer reassembles lines that arrive split across network reads.
type LineBuffer struct {
	partial []byte
}

// Feed appends a chunk and returns every line it completes, without the
// line terminator (LF or CRLF). A trailing line without a terminator is kept
// for the next call.
func (b *LineBuffer) Feed(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}

	data := append(b.partial, chunk...)
	var lines []string
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, strings.TrimRight(string(data[:idx]), "\r"))
		data = data[idx+1:]
	}

	b.partial = append([]byte(nil), data...)
	return lines
}

// Flush returns the buffered partial line, if any, and resets the buffer.
func (b *LineBuffer) Flush() (string, bool) {
	if len(b.partial) == 0 {
		return "", false
	}
	line := strings.TrimRight(string(b.partial), "\r")
	b.partial = nil
	return line, true
}

// Pending reports how many bytes are waiting for a line terminator.
func (b *LineBuffer) Pending() int {
	return len(b.partial)
}
