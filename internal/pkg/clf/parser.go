// Package clf parses web-server access-log lines in Common Log Format.
//
// The accepted grammar is fixed:
//
//	client_ip identity user_id [timestamp] "method resource protocol" status size
//
// The request section may carry only a method, or a method and a resource.
// Status and size accept the "-" sentinel. Anything after the size token and a
// separating whitespace (combined-format referer and user agent) is ignored.
package clf

import (
	"fmt"
	"strings"

	"github.com/coffersTech/nanolog/logreport/internal/model"
)

// ParseError reports a line that does not match the grammar.
type ParseError struct {
	LineNo int // 1-based, zero when the caller did not track it
	Offset int // byte offset where matching stopped
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	if e.LineNo > 0 {
		return fmt.Sprintf("parse error on line %d at column %d: %s: %q", e.LineNo, e.Offset, e.Reason, e.Line)
	}
	return fmt.Sprintf("parse error at column %d: %s: %q", e.Offset, e.Reason, e.Line)
}

// Parse converts one line into a Record. On failure no partial record is
// returned and the error is a *ParseError.
func Parse(line string) (model.Record, error) {
	line = strings.TrimRight(line, "\r\n")
	s := newScanner(line)
	fail := func(reason string) (model.Record, error) {
		return model.Record{}, &ParseError{Offset: s.pos, Line: line, Reason: reason}
	}

	var rec model.Record
	var ok bool

	if rec.ClientIP, ok = field(s); !ok {
		return fail("expected client address")
	}
	if rec.Identity, ok = field(s); !ok {
		return fail("expected identity")
	}
	if rec.UserID, ok = field(s); !ok {
		return fail("expected user id")
	}

	if rec.Timestamp, ok = timestamp(s); !ok {
		return fail("expected [timestamp]")
	}
	if !s.expect(' ') || !s.expect('"') {
		return fail("expected quoted request")
	}

	// The closing quote is the first one that leaves a valid request and a
	// valid status/size tail.
	rest := s.rest()
	for i := 0; i < len(rest); i++ {
		if rest[i] != '"' {
			continue
		}
		tokens, ok := splitRequest(rest[:i])
		if !ok {
			continue
		}
		status, size, ok := tail(rest[i+1:])
		if !ok {
			continue
		}
		rec.Method = tokens[0]
		if len(tokens) > 1 {
			rec.Resource = tokens[1]
		}
		if len(tokens) > 2 {
			rec.Protocol = tokens[2]
		}
		rec.Status = status
		rec.Size = size
		return rec, nil
	}
	return fail("malformed request, status or size")
}

// field reads a non-empty token followed by a single space.
func field(s *scanner) (string, bool) {
	tok := s.readToken()
	if tok == "" || !s.expect(' ') {
		return "", false
	}
	return tok, true
}

// timestamp reads "[date zone]" where zone is [+-]dddd.
func timestamp(s *scanner) (string, bool) {
	if !s.expect('[') {
		return "", false
	}
	start := s.pos
	if s.readWhile(isDateChar) == "" {
		return "", false
	}
	if !s.expectSpace() {
		return "", false
	}
	if !s.expect('+') && !s.expect('-') {
		return "", false
	}
	if len(s.readWhile(isDigit)) != 4 {
		return "", false
	}
	ts := s.input[start:s.pos]
	if !s.expect(']') {
		return "", false
	}
	return ts, true
}

// splitRequest splits the quoted request into 1-3 tokens separated by a
// single whitespace byte. One trailing whitespace byte is tolerated after the
// first or second token, never after the protocol.
func splitRequest(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	tokens := make([]string, 0, 3)
	start := 0
	for i := 0; i <= len(content); i++ {
		if i < len(content) && !isSpace(content[i]) {
			continue
		}
		if i == start {
			if i == len(content) && len(tokens) > 0 && len(tokens) < 3 {
				break
			}
			return nil, false
		}
		tokens = append(tokens, content[start:i])
		if len(tokens) > 3 {
			return nil, false
		}
		start = i + 1
	}
	return tokens, true
}

// tail parses ` status size` after the closing quote.
func tail(rest string) (status, size string, ok bool) {
	s := newScanner(rest)
	if !s.expect(' ') {
		return "", "", false
	}
	if s.expect('-') {
		status = model.NullToken
	} else {
		status = s.readWhile(isDigit)
		if len(status) != 3 {
			return "", "", false
		}
	}
	if !s.expect(' ') {
		return "", "", false
	}
	if s.expect('-') {
		size = model.NullToken
	} else {
		size = s.readWhile(isDigit)
		if size == "" {
			return "", "", false
		}
	}
	if !s.eof() && !s.expectSpace() {
		return "", "", false
	}
	return status, size, true
}
