package rdf

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	graperr "github.com/kitelev/exocortex-graph/pkg/errors"
)

// ReadNTriples reads a line-oriented N-Triples document and returns its
// triples. Comment lines (#) and blank lines are skipped. The reader is
// strict about term syntax but tolerant of surrounding whitespace.
func ReadNTriples(r io.Reader) ([]*Triple, error) {
	var triples []*Triple
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		triple, err := parseNTriplesLine(line, lineNo)
		if err != nil {
			return nil, err
		}
		triples = append(triples, triple)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return triples, nil
}

// ParseTerm parses a single term in its canonical N-Triples form, the
// inverse of Term.String.
func ParseTerm(s string) (Term, error) {
	p := &ntParser{input: strings.TrimSpace(s), line: 1}
	term, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.input) {
		return nil, p.errorf("trailing characters after term")
	}
	return term, nil
}

func parseNTriplesLine(line string, lineNo int) (*Triple, error) {
	p := &ntParser{input: line, line: lineNo}

	subject, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	predicate, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	object, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() != '.' {
		return nil, p.errorf("expected '.' terminator")
	}

	return NewTriple(subject, predicate, object)
}

type ntParser struct {
	input string
	pos   int
	line  int
}

func (p *ntParser) errorf(format string, args ...any) error {
	return graperr.SyntaxError(graperr.Position{Line: p.line, Column: p.pos + 1, Offset: p.pos}, format, args...)
}

func (p *ntParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *ntParser) skipSpace() {
	for p.pos < len(p.input) && (p.input[p.pos] == ' ' || p.input[p.pos] == '\t') {
		p.pos++
	}
}

func (p *ntParser) parseTerm() (Term, error) {
	p.skipSpace()
	switch p.peek() {
	case '<':
		return p.parseIRI()
	case '_':
		return p.parseBlankNode()
	case '"':
		return p.parseLiteral()
	default:
		return nil, p.errorf("unexpected character %q", p.peek())
	}
}

func (p *ntParser) parseIRI() (*IRI, error) {
	p.pos++ // '<'
	end := strings.IndexByte(p.input[p.pos:], '>')
	if end < 0 {
		return nil, p.errorf("unterminated IRI")
	}
	value := p.input[p.pos : p.pos+end]
	p.pos += end + 1
	return NewIRI(value)
}

func (p *ntParser) parseBlankNode() (*BlankNode, error) {
	if !strings.HasPrefix(p.input[p.pos:], "_:") {
		return nil, p.errorf("expected '_:' blank node prefix")
	}
	p.pos += 2
	start := p.pos
	for p.pos < len(p.input) && !isNTWhitespace(p.input[p.pos]) {
		p.pos++
	}
	return NewBlankNode(p.input[start:p.pos])
}

func (p *ntParser) parseLiteral() (*Literal, error) {
	// Scan the quoted value, honoring escape sequences.
	quoted := p.input[p.pos:]
	end := 1
	for end < len(quoted) {
		if quoted[end] == '\\' {
			end += 2
			continue
		}
		if quoted[end] == '"' {
			break
		}
		end++
	}
	if end >= len(quoted) {
		return nil, p.errorf("unterminated string literal")
	}
	value, err := strconv.Unquote(quoted[:end+1])
	if err != nil {
		return nil, p.errorf("invalid string literal: %v", err)
	}
	p.pos += end + 1

	// Optional language tag or datatype.
	if p.peek() == '@' {
		p.pos++
		start := p.pos
		for p.pos < len(p.input) && !isNTWhitespace(p.input[p.pos]) {
			p.pos++
		}
		if p.pos == start {
			return nil, p.errorf("empty language tag")
		}
		return NewLangLiteral(value, p.input[start:p.pos]), nil
	}
	if strings.HasPrefix(p.input[p.pos:], "^^") {
		p.pos += 2
		if p.peek() != '<' {
			return nil, p.errorf("expected IRI after '^^'")
		}
		datatype, err := p.parseIRI()
		if err != nil {
			return nil, err
		}
		return NewTypedLiteral(value, datatype), nil
	}
	return NewLiteral(value), nil
}

func isNTWhitespace(ch byte) bool {
	return ch == ' ' || ch == '\t'
}
