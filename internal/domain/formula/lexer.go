package formula

import (
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokIdent
	tokOperator
	tokLeftParen
	tokRightParen
	tokComma
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

var twoCharOperators = map[string]struct{}{
	">=": {}, "<=": {}, "==": {}, "!=": {},
}

const singleCharOperators = "+-*/%^<>"

func tokenize(src string) ([]token, error) {
	var tokens []token
	pos := 0
	for pos < len(src) {
		c := src[pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			pos++
		case isDigit(c) || (c == '.' && pos+1 < len(src) && isDigit(src[pos+1])):
			tok, next, err := scanNumber(src, pos)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, tok)
			pos = next
		case isIdentStart(c):
			start := pos
			for pos < len(src) && isIdentPart(src[pos]) {
				pos++
			}
			tokens = append(tokens, token{kind: tokIdent, text: src[start:pos], pos: start})
		case c == '(':
			tokens = append(tokens, token{kind: tokLeftParen, text: "(", pos: pos})
			pos++
		case c == ')':
			tokens = append(tokens, token{kind: tokRightParen, text: ")", pos: pos})
			pos++
		case c == ',':
			tokens = append(tokens, token{kind: tokComma, text: ",", pos: pos})
			pos++
		default:
			if pos+1 < len(src) {
				if _, ok := twoCharOperators[src[pos:pos+2]]; ok {
					tokens = append(tokens, token{kind: tokOperator, text: src[pos : pos+2], pos: pos})
					pos += 2
					continue
				}
			}
			if strings.IndexByte(singleCharOperators, c) >= 0 {
				tokens = append(tokens, token{kind: tokOperator, text: string(c), pos: pos})
				pos++
				continue
			}
			if c == '=' || c == '!' {
				return nil, syntaxErr(pos, "Unexpected operator %c", c)
			}
			return nil, syntaxErr(pos, "Syntax error in part %q", src[pos:min(pos+8, len(src))])
		}
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func scanNumber(src string, start int) (token, int, error) {
	pos := start
	for pos < len(src) && isDigit(src[pos]) {
		pos++
	}
	if pos < len(src) && src[pos] == '.' {
		pos++
		for pos < len(src) && isDigit(src[pos]) {
			pos++
		}
	}
	if pos < len(src) && (src[pos] == 'e' || src[pos] == 'E') {
		exp := pos + 1
		if exp < len(src) && (src[exp] == '+' || src[exp] == '-') {
			exp++
		}
		if exp < len(src) && isDigit(src[exp]) {
			pos = exp
			for pos < len(src) && isDigit(src[pos]) {
				pos++
			}
		}
	}
	text := src[start:pos]
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, 0, syntaxErr(start, "Invalid number %q", text)
	}
	if pos < len(src) && isIdentStart(src[pos]) {
		return token{}, 0, syntaxErr(pos, "Unexpected character %q after number", src[pos])
	}
	return token{kind: tokNumber, text: text, num: value, pos: start}, pos, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
