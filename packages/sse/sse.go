// Package sse decodes Server-Sent Events from a response body.
//
// The client reads a response to the end before returning it, so an event
// stream is decoded once the server has closed it.
package sse

import (
	"bufio"
	"bytes"
	"mime"
	"strconv"
	"strings"
)

// ContentType is the media type of an event stream
const ContentType = "text/event-stream"

// Event represents a single SSE event.
type Event struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"event,omitempty"`
	Data  string `json:"data"`
	Retry int    `json:"retry,omitempty"` // milliseconds
}

// IsEventStream reports whether contentType names an event stream.
func IsEventStream(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), ContentType)
	}
	return mediaType == ContentType
}

// Parse decodes every complete event in body. An event without data lines
// is dropped. A final event not followed by a blank line is kept.
func Parse(body []byte) ([]Event, error) {
	scanner := bufio.NewScanner(bytes.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), len(body)+1)

	var (
		events    []Event
		current   Event
		dataLines []string
	)

	flush := func() {
		if len(dataLines) > 0 {
			current.Data = strings.Join(dataLines, "\n")
			events = append(events, current)
		}
		current = Event{}
		dataLines = nil
	}

	for scanner.Scan() {
		line := scanner.Text()

		// Empty line signals end of event
		if line == "" {
			flush()
			continue
		}

		// Comment
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, found := strings.Cut(line, ":")
		if found {
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "event":
			current.Type = value
		case "data":
			dataLines = append(dataLines, value)
		case "id":
			current.ID = value
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil {
				current.Retry = ms
			}
		}
	}
	flush()

	return events, scanner.Err()
}
