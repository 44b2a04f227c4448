// Package filter implements the SCIM 2.0 filter grammar (RFC 7644
// §3.4.2.2): tokenizer, recursive-descent parser, in-memory evaluator, and
// the store-pushdown planner.
package filter

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"github.com/pranems/SCIMServer-sub002/internal/domain"
)

// TokenKind classifies a lexed token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenAttr
	TokenString
	TokenNumber
	TokenBool
	TokenNull
	TokenOp  // eq ne co sw ew gt ge lt le pr
	TokenAnd
	TokenOr
	TokenNot
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
)

// Token is one lexed unit of a filter string.
type Token struct {
	Kind TokenKind
	// Text is the raw lexeme (attribute path or operator keyword, lower-cased
	// for keywords).
	Text string
	// Str/Num/Bool hold the decoded literal for the literal kinds.
	Str  string
	Num  float64
	Bool bool
	Pos  int
}

var operatorWords = map[string]bool{
	"eq": true, "ne": true, "co": true, "sw": true, "ew": true,
	"gt": true, "ge": true, "lt": true, "le": true, "pr": true,
}

// Tokenize lexes a filter string. Keywords and operators are recognized
// case-insensitively; attribute paths may span dots and colons so a
// schema-URN-qualified path arrives as a single ATTR token. Failures are
// *domain.InvalidFilterError.
func Tokenize(input string) ([]Token, error) {
	var toks []Token
	runes := []rune(input)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, Token{Kind: TokenLParen, Text: "(", Pos: i})
			i++
		case r == ')':
			toks = append(toks, Token{Kind: TokenRParen, Text: ")", Pos: i})
			i++
		case r == '[':
			toks = append(toks, Token{Kind: TokenLBracket, Text: "[", Pos: i})
			i++
		case r == ']':
			toks = append(toks, Token{Kind: TokenRBracket, Text: "]", Pos: i})
			i++
		case r == '"':
			tok, next, err := lexString(runes, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case r == '-' || unicode.IsDigit(r):
			tok, next, err := lexNumber(runes, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, tok)
			i = next
		case isAttrStart(r):
			start := i
			for i < len(runes) && isAttrRune(runes[i]) {
				i++
			}
			toks = append(toks, classifyWord(string(runes[start:i]), start))
		default:
			return nil, domain.ErrInvalidFilter("unexpected character %q at position %d", string(r), i)
		}
	}
	toks = append(toks, Token{Kind: TokenEOF, Pos: len(runes)})
	return toks, nil
}

func isAttrStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '$'
}

func isAttrRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		r == '_' || r == '-' || r == '.' || r == ':' || r == '$'
}

// classifyWord sorts a bare word into keyword, operator, literal, or
// attribute path.
func classifyWord(word string, pos int) Token {
	switch lower := strings.ToLower(word); lower {
	case "and":
		return Token{Kind: TokenAnd, Text: lower, Pos: pos}
	case "or":
		return Token{Kind: TokenOr, Text: lower, Pos: pos}
	case "not":
		return Token{Kind: TokenNot, Text: lower, Pos: pos}
	case "true", "false":
		return Token{Kind: TokenBool, Text: lower, Bool: lower == "true", Pos: pos}
	case "null":
		return Token{Kind: TokenNull, Text: lower, Pos: pos}
	default:
		if operatorWords[lower] {
			return Token{Kind: TokenOp, Text: lower, Pos: pos}
		}
		return Token{Kind: TokenAttr, Text: word, Pos: pos}
	}
}

// lexString lexes a double-quoted string literal. The body is decoded with
// the JSON string rules, so every escape a SCIM client can send is honored.
func lexString(runes []rune, start int) (Token, int, error) {
	i := start + 1
	for i < len(runes) {
		switch runes[i] {
		case '\\':
			i += 2
		case '"':
			raw := string(runes[start : i+1])
			var s string
			if err := json.Unmarshal([]byte(raw), &s); err != nil {
				return Token{}, 0, domain.ErrInvalidFilter("malformed string literal at position %d", start)
			}
			return Token{Kind: TokenString, Text: raw, Str: s, Pos: start}, i + 1, nil
		default:
			i++
		}
	}
	return Token{}, 0, domain.ErrInvalidFilter("unterminated string literal at position %d", start)
}

func lexNumber(runes []rune, start int) (Token, int, error) {
	i := start
	if runes[i] == '-' {
		i++
	}
	for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.' ||
		runes[i] == 'e' || runes[i] == 'E' || runes[i] == '+' ||
		(runes[i] == '-' && (runes[i-1] == 'e' || runes[i-1] == 'E'))) {
		i++
	}
	raw := string(runes[start:i])
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Token{}, 0, domain.ErrInvalidFilter("malformed number %q at position %d", raw, start)
	}
	return Token{Kind: TokenNumber, Text: raw, Num: n, Pos: start}, i, nil
}
