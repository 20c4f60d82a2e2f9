package notify

import (
	"bufio"
	"io"
	"strings"
)

// Event is one server-sent event.
type Event struct {
	Type string
	// Data joins every "data:" line of the event with newlines.
	Data string
}

// Scanner reads server-sent events from a stream. Events are delimited
// by blank lines; comment lines such as keep-alives are skipped.
//
//	scanner := NewScanner(body)
//	for scanner.Next() {
//	    handle(scanner.Event())
//	}
//	if err := scanner.Err(); err != nil {
//	    ...
//	}
type Scanner struct {
	reader  *bufio.Reader
	current Event
	err     error
}

func NewScanner(r io.Reader) *Scanner {
	return &Scanner{reader: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next event that carries data. It returns false
// at the end of the stream or on a read error.
func (s *Scanner) Next() bool {
	s.current = Event{}
	if s.err != nil {
		return false
	}

	var data []string
	var eventType string
	hasData := false

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil && line == "" {
			s.err = err
			if err == io.EOF && hasData {
				s.current = Event{Type: eventType, Data: strings.Join(data, "\n")}
				return true
			}
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				s.current = Event{Type: eventType, Data: strings.Join(data, "\n")}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			field, value = line, ""
		}
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			data = append(data, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

func (s *Scanner) Event() Event {
	return s.current
}

// Err returns the read error that stopped the scanner, or nil on a
// clean end of stream.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
