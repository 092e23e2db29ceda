package clf

// scanner walks a single log line byte by byte.
type scanner struct {
	input string
	pos   int
}

func newScanner(input string) *scanner {
	return &scanner{input: input, pos: 0}
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.input)
}

func (s *scanner) peek() byte {
	if s.eof() {
		return 0
	}
	return s.input[s.pos]
}

// expect consumes ch if it is the next byte.
func (s *scanner) expect(ch byte) bool {
	if s.eof() || s.input[s.pos] != ch {
		return false
	}
	s.pos++
	return true
}

// expectSpace consumes exactly one whitespace byte.
func (s *scanner) expectSpace() bool {
	if s.eof() || !isSpace(s.input[s.pos]) {
		return false
	}
	s.pos++
	return true
}

// readToken returns the run of non-whitespace bytes at the cursor.
func (s *scanner) readToken() string {
	start := s.pos
	for s.pos < len(s.input) && !isSpace(s.input[s.pos]) {
		s.pos++
	}
	return s.input[start:s.pos]
}

// readWhile returns the run of bytes accepted by fn.
func (s *scanner) readWhile(fn func(byte) bool) string {
	start := s.pos
	for s.pos < len(s.input) && fn(s.input[s.pos]) {
		s.pos++
	}
	return s.input[start:s.pos]
}

func (s *scanner) rest() string {
	return s.input[s.pos:]
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isDateChar accepts the word characters, colons and slashes of a CLF date.
func isDateChar(ch byte) bool {
	return isDigit(ch) || ch == '_' || ch == ':' || ch == '/' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
