package claude

import (
	"bufio"
	"encoding/json"
	"io"
)

// DefaultBufferSize is the largest stream line accepted by [DefaultParser].
// A code response arrives as a single result line, so this has to hold a
// whole generated file set.
const DefaultBufferSize = 10 * 1024 * 1024

// Parser decodes the CLI's stream-json output.
type Parser interface {
	// Parse reads lines from reader and sends one [Event] per decodable line.
	// The channel is closed at EOF or on a read error.
	Parse(reader io.Reader) <-chan Event
}

// DefaultParser implements [Parser] with a line scanner.
//
// Blank lines and lines that are not JSON are skipped, since the CLI may
// print warnings on stdout before the first event.
type DefaultParser struct {
	// BufferSize caps a single line. Values <= 0 use [DefaultBufferSize].
	BufferSize int
}

// NewParser creates a [DefaultParser] with the default buffer size.
func NewParser() *DefaultParser {
	return &DefaultParser{BufferSize: DefaultBufferSize}
}

// Parse starts a goroutine that decodes reader line by line.
func (p *DefaultParser) Parse(reader io.Reader) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		size := p.BufferSize
		if size <= 0 {
			size = DefaultBufferSize
		}
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), size)

		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}

			var raw StreamEvent
			if err := json.Unmarshal(line, &raw); err != nil {
				continue
			}
			events <- NewEventFromStream(&raw)
		}
	}()

	return events
}

// ParseSingle decodes one stream line. Unlike [DefaultParser.Parse] it
// reports malformed input.
func ParseSingle(line string) (Event, error) {
	var raw StreamEvent
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return Event{}, err
	}
	return NewEventFromStream(&raw), nil
}
