// Copyright 2026 The Abla Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package syntax

// An Abla scanner: it produces one token at a time with no
// knowledge of the grammar. String literals are returned raw
// (between the quotes); the parser splits them into parts.

import (
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// A Token represents an Abla lexical token.
type Token int8

const (
	ILLEGAL Token = iota
	EOF

	IDENT  // x
	INT    // 123
	STRING // "foo"

	// Punctuation
	LPAREN // (
	RPAREN // )
	LBRACE // {
	RBRACE // }
	COMMA  // ,
	COLON  // :
	SEMI   // ;
	ARROW  // ->
	HASH   // #
	EQ     // =
	EQL    // ==
	NEQ    // !=
	LT     // <
	GT     // >
	LE     // <=
	GE     // >=
	PLUS   // +
	MINUS  // -
	STAR   // *
	SLASH  // /

	// Keywords
	ABSTRACT
	COMPILER
	ELSE
	EXTERN
	FUN
	IF
	VAL
	VAR
	WHILE

	maxToken
)

func (tok Token) String() string { return tokenNames[tok] }

// GoString is like String but quotes punctuation tokens.
// Use Sprintf("%#v", tok) when constructing error messages.
func (tok Token) GoString() string {
	if tok >= LPAREN && tok <= SLASH {
		return "'" + tokenNames[tok] + "'"
	}
	return tokenNames[tok]
}

var tokenNames = [...]string{
	ILLEGAL:  "illegal token",
	EOF:      "end of file",
	IDENT:    "identifier",
	INT:      "int literal",
	STRING:   "string literal",
	LPAREN:   "(",
	RPAREN:   ")",
	LBRACE:   "{",
	RBRACE:   "}",
	COMMA:    ",",
	COLON:    ":",
	SEMI:     ";",
	ARROW:    "->",
	HASH:     "#",
	EQ:       "=",
	EQL:      "==",
	NEQ:      "!=",
	LT:       "<",
	GT:       ">",
	LE:       "<=",
	GE:       ">=",
	PLUS:     "+",
	MINUS:    "-",
	STAR:     "*",
	SLASH:    "/",
	ABSTRACT: "abstract",
	COMPILER: "compiler",
	ELSE:     "else",
	EXTERN:   "extern",
	FUN:      "fun",
	IF:       "if",
	VAL:      "val",
	VAR:      "var",
	WHILE:    "while",
}

var keywordToken = map[string]Token{
	"abstract": ABSTRACT,
	"compiler": COMPILER,
	"else":     ELSE,
	"extern":   EXTERN,
	"fun":      FUN,
	"if":       IF,
	"val":      VAL,
	"var":      VAR,
	"while":    WHILE,
}

// A Position describes the location of a rune of input.
type Position struct {
	file *string // filename (indirect for compactness)
	Line int32   // 1-based line number; 0 if line unknown
	Col  int32   // 1-based column (rune) number; 0 if column unknown
}

// IsValid reports whether the position is valid.
func (p Position) IsValid() bool { return p.file != nil }

// Filename returns the name of the file containing this position.
func (p Position) Filename() string {
	if p.file != nil {
		return *p.file
	}
	return "<invalid>"
}

// MakePosition returns position with the specified components.
func MakePosition(file *string, line, col int32) Position { return Position{file, line, col} }

// add returns the position at the end of s, assuming it starts at p.
func (p Position) add(s string) Position {
	if n := strings.Count(s, "\n"); n > 0 {
		p.Line += int32(n)
		s = s[strings.LastIndex(s, "\n")+1:]
		p.Col = 1
	}
	p.Col += int32(utf8.RuneCountInString(s))
	return p
}

func (p Position) String() string {
	file := p.Filename()
	if p.Line > 0 {
		if p.Col > 0 {
			return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Col)
		}
		return fmt.Sprintf("%s:%d", file, p.Line)
	}
	return file
}

func (p Position) isBefore(q Position) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Col < q.Col
}

// An Error describes the nature and position of a scanner or parser error.
type Error struct {
	Pos Position
	Msg string
}

func (e Error) Error() string { return e.Pos.String() + ": " + e.Msg }

// readSource returns the contents of the source, which may be
// a string, []byte, or io.Reader. If src is nil the named file is read.
func readSource(filename string, src interface{}) ([]byte, error) {
	switch src := src.(type) {
	case string:
		return []byte(src), nil
	case []byte:
		return src, nil
	case io.Reader:
		data, err := ioutil.ReadAll(src)
		if err != nil {
			err = Error{MakePosition(&filename, 1, 1), err.Error()}
			return nil, err
		}
		return data, nil
	case nil:
		return ioutil.ReadFile(filename)
	default:
		return nil, fmt.Errorf("invalid source: %T", src)
	}
}

// A scanner represents a single input file being parsed.
type scanner struct {
	rest []byte   // rest of input
	pos  Position // current input position
}

// tokenValue records the position and value associated with each token.
type tokenValue struct {
	raw    string   // raw text of token
	int    int64    // decoded int
	string string   // raw contents of a string literal, quotes removed
	pos    Position // start position of token
}

func newScanner(filename string, src []byte) *scanner {
	return &scanner{
		rest: src,
		pos:  MakePosition(&filename, 1, 1),
	}
}

// recover converts a panic carrying an Error into an ordinary error.
func (sc *scanner) recover(err *error) {
	switch e := recover().(type) {
	case nil:
		// no panic
	case Error:
		*err = e
	default:
		panic(e)
	}
}

func (sc *scanner) error(pos Position, s string) {
	panic(Error{pos, s})
}

func (sc *scanner) errorf(pos Position, format string, args ...interface{}) {
	sc.error(pos, fmt.Sprintf(format, args...))
}

// peekRune returns the next rune in the input without consuming it.
func (sc *scanner) peekRune() rune {
	if len(sc.rest) == 0 {
		return 0
	}
	if b := sc.rest[0]; b < utf8.RuneSelf {
		return rune(b)
	}
	r, _ := utf8.DecodeRune(sc.rest)
	return r
}

// readRune consumes and returns the next rune in the input.
func (sc *scanner) readRune() rune {
	if len(sc.rest) == 0 {
		sc.error(sc.pos, "internal scanner error: readRune at EOF")
	}
	var r rune
	if b := sc.rest[0]; b < utf8.RuneSelf {
		r = rune(b)
		sc.rest = sc.rest[1:]
	} else {
		var n int
		r, n = utf8.DecodeRune(sc.rest)
		sc.rest = sc.rest[n:]
	}
	if r == '\n' {
		sc.pos.Line++
		sc.pos.Col = 1
	} else {
		sc.pos.Col++
	}
	return r
}

// nextToken is called by the parser to obtain the next input token.
// It returns the token value and sets val to the data associated with
// the token.
func (sc *scanner) nextToken(val *tokenValue) Token {
	// Skip spaces, newlines, and comments.
	for {
		c := sc.peekRune()
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			sc.readRune()
			continue
		}
		if c == '/' && len(sc.rest) > 1 && sc.rest[1] == '/' {
			for len(sc.rest) > 0 && sc.peekRune() != '\n' {
				sc.readRune()
			}
			continue
		}
		break
	}

	start := sc.rest
	val.pos = sc.pos
	val.raw = ""
	val.int = 0
	val.string = ""

	if len(sc.rest) == 0 {
		return EOF
	}

	c := sc.peekRune()
	switch {
	case isIdentStart(c):
		for isIdent(sc.peekRune()) {
			sc.readRune()
		}
		val.raw = string(start[:len(start)-len(sc.rest)])
		if tok, ok := keywordToken[val.raw]; ok {
			return tok
		}
		return IDENT

	case isDigit(c):
		for isDigit(sc.peekRune()) {
			sc.readRune()
		}
		val.raw = string(start[:len(start)-len(sc.rest)])
		n, err := strconv.ParseInt(val.raw, 10, 64)
		if err != nil {
			sc.errorf(val.pos, "invalid int literal %s", val.raw)
		}
		val.int = n
		return INT

	case c == '"':
		return sc.scanString(val, start)
	}

	sc.readRune()
	two := func(next rune, ifMatch, otherwise Token) Token {
		if sc.peekRune() == next {
			sc.readRune()
			return ifMatch
		}
		return otherwise
	}
	var tok Token
	switch c {
	case '(':
		tok = LPAREN
	case ')':
		tok = RPAREN
	case '{':
		tok = LBRACE
	case '}':
		tok = RBRACE
	case ',':
		tok = COMMA
	case ':':
		tok = COLON
	case ';':
		tok = SEMI
	case '#':
		tok = HASH
	case '+':
		tok = PLUS
	case '*':
		tok = STAR
	case '/':
		tok = SLASH
	case '-':
		tok = two('>', ARROW, MINUS)
	case '=':
		tok = two('=', EQL, EQ)
	case '<':
		tok = two('=', LE, LT)
	case '>':
		tok = two('=', GE, GT)
	case '!':
		if sc.peekRune() != '=' {
			sc.errorf(val.pos, "unexpected input character '!'")
		}
		sc.readRune()
		tok = NEQ
	default:
		sc.errorf(val.pos, "unexpected input character %#q", c)
	}
	val.raw = string(start[:len(start)-len(sc.rest)])
	return tok
}

// scanString consumes a double-quoted string literal. Escapes are left
// intact; braces inside ${...} may contain nested string literals.
func (sc *scanner) scanString(val *tokenValue, start []byte) Token {
	sc.readRune() // opening quote
	depth := 0
	for {
		if len(sc.rest) == 0 {
			sc.error(val.pos, "unexpected EOF in string")
		}
		c := sc.readRune()
		switch c {
		case '\\':
			if len(sc.rest) == 0 {
				sc.error(val.pos, "unexpected EOF in string")
			}
			sc.readRune()
			continue
		case '\n':
			if depth == 0 {
				sc.error(val.pos, "unexpected newline in string")
			}
		case '$':
			if sc.peekRune() == '{' {
				sc.readRune()
				depth++
			}
			continue
		case '{':
			if depth > 0 {
				depth++
			}
		case '}':
			if depth > 0 {
				depth--
			}
		case '"':
			if depth == 0 {
				val.raw = string(start[:len(start)-len(sc.rest)])
				val.string = val.raw[1 : len(val.raw)-1]
				return STRING
			}
			// A nested string inside an interpolation.
			for {
				if len(sc.rest) == 0 {
					sc.error(val.pos, "unexpected EOF in string")
				}
				d := sc.readRune()
				if d == '\\' && len(sc.rest) > 0 {
					sc.readRune()
					continue
				}
				if d == '"' {
					break
				}
			}
		}
	}
}

func isDigit(c rune) bool { return '0' <= c && c <= '9' }

func isIdentStart(c rune) bool {
	return 'a' <= c && c <= 'z' ||
		'A' <= c && c <= 'Z' ||
		c == '_' ||
		unicode.IsLetter(c)
}

func isIdent(c rune) bool {
	return isDigit(c) || isIdentStart(c)
}

// unescape decodes the escape sequences permitted in string constants.
func unescape(pos Position, s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}
	var buf strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			buf.WriteByte(c)
			continue
		}
		i++
		if i == len(s) {
			return "", Error{pos, "truncated escape sequence"}
		}
		switch s[i] {
		case 'n':
			buf.WriteByte('\n')
		case 't':
			buf.WriteByte('\t')
		case 'r':
			buf.WriteByte('\r')
		case '\\', '"', '$':
			buf.WriteByte(s[i])
		default:
			return "", Error{pos, fmt.Sprintf(`invalid escape sequence \%c`, s[i])}
		}
	}
	return buf.String(), nil
}
