package plan

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the storage class of a declared column type.
type Kind int

const (
	// KindOther covers every type that is not converted (INT, DATE, ENUM, BLOB, ...).
	KindOther Kind = iota
	// KindText covers TINYTEXT, TEXT, MEDIUMTEXT and LONGTEXT.
	KindText
	// KindVarchar covers VARCHAR(n).
	KindVarchar
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindVarchar:
		return "VARCHAR"
	default:
		return "OTHER"
	}
}

// TypeDescriptor is the parsed form of a column type string such as the
// COLUMN_TYPE value reported by INFORMATION_SCHEMA.
type TypeDescriptor struct {
	Kind Kind
	// Raw is the declared type, trimmed and upper-cased.
	Raw string
	// Length is the declared length of a VARCHAR, zero otherwise.
	Length int
}

// IsString returns true if columns of this type are converted.
func (t TypeDescriptor) IsString() bool {
	return t.Kind == KindText || t.Kind == KindVarchar
}

// ParseType classifies a declared column type. Matching is case-insensitive.
// Well-formed types that are neither TEXT nor VARCHAR are returned as
// KindOther; they are not an error. For TEXT and VARCHAR, charset attributes
// such as BINARY or CHARACTER SET are accepted and dropped from Raw since the
// conversion supplies its own, and NATIONAL VARCHAR or NVARCHAR is read as
// VARCHAR.
func ParseType(declared string) (TypeDescriptor, error) {
	s := strings.ToLower(strings.TrimSpace(declared))
	if s == "" {
		return TypeDescriptor{}, fmt.Errorf("%w: empty type", ErrMalformedTypeDescriptor)
	}
	t, err := splitType(s)
	if err != nil {
		return TypeDescriptor{}, fmt.Errorf("%w: %q: %s", ErrMalformedTypeDescriptor, declared, err)
	}
	desc := TypeDescriptor{Kind: KindOther, Raw: strings.ToUpper(strings.TrimSpace(declared))}
	base := t.base
	if base == "nvarchar" || (t.national && base == "varchar") {
		base = "varchar"
	}
	switch {
	case strings.HasSuffix(base, "text"):
		if t.args != nil {
			if base != "text" || len(t.args) != 1 || !positiveInt(t.args[0]) {
				return TypeDescriptor{}, fmt.Errorf("%w: %q: only text takes a single positive length", ErrMalformedTypeDescriptor, declared)
			}
		}
		desc.Kind = KindText
	case base == "varchar":
		if len(t.args) != 1 || !positiveInt(t.args[0]) {
			return TypeDescriptor{}, fmt.Errorf("%w: %q: varchar requires exactly one positive length", ErrMalformedTypeDescriptor, declared)
		}
		desc.Kind = KindVarchar
		desc.Length, _ = strconv.Atoi(t.args[0])
	default:
		return desc, nil
	}
	if err := checkStringAttrs(t.attrs); err != nil {
		return TypeDescriptor{}, fmt.Errorf("%w: %q: %s", ErrMalformedTypeDescriptor, declared, err)
	}
	desc.Raw = strings.ToUpper(base + t.argText)
	return desc, nil
}

func positiveInt(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// checkStringAttrs accepts the attributes MySQL allows after a character
// type: BINARY, ASCII, UNICODE, BYTE, CHARACTER SET x, CHARSET x and
// COLLATE x.
func checkStringAttrs(attrs []string) error {
	for i := 0; i < len(attrs); i++ {
		switch attrs[i] {
		case "binary", "ascii", "unicode", "byte":
		case "character":
			if i+2 >= len(attrs) || attrs[i+1] != "set" {
				return errors.New("character must be followed by set and a name")
			}
			i += 2
		case "charset", "collate":
			if i+1 >= len(attrs) {
				return fmt.Errorf("%s requires a name", attrs[i])
			}
			i++
		default:
			return fmt.Errorf("unexpected attribute %s", attrs[i])
		}
	}
	return nil
}

// typeParts is a lower-cased type split into its pieces. For example
// "int(10) unsigned zerofill" has base "int", args ["10"] and attrs
// ["unsigned", "zerofill"]. args is nil when there is no argument list, and
// argText is the argument list as written, including any leading space.
type typeParts struct {
	national bool
	base     string
	args     []string
	argText  string
	attrs    []string
}

func splitType(s string) (typeParts, error) {
	var t typeParts
	base, pos := readWord(s, 0)
	if base == "national" {
		t.national = true
		base, pos = readWord(s, skipSpace(s, pos))
	}
	if base == "" {
		return t, errors.New("type must start with a keyword")
	}
	t.base = base
	argStart := pos
	pos = skipSpace(s, pos)
	if pos < len(s) && s[pos] == '(' {
		var err error
		t.args, pos, err = readArgs(s, pos)
		if err != nil {
			return t, err
		}
		t.argText = s[argStart:pos]
	}
	for {
		pos = skipSpace(s, pos)
		if pos >= len(s) {
			break
		}
		var word string
		word, pos = readWord(s, pos)
		if word == "" {
			return t, fmt.Errorf("unexpected %q at offset %d", s[pos], pos)
		}
		t.attrs = append(t.attrs, word)
	}
	return t, nil
}

func readWord(s string, pos int) (string, int) {
	start := pos
	for pos < len(s) {
		c := s[pos]
		isLetter := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		if isLetter || c == '_' || (isDigit && pos > start) {
			pos++
			continue
		}
		break
	}
	return s[start:pos], pos
}

func skipSpace(s string, pos int) int {
	for pos < len(s) && (s[pos] == ' ' || s[pos] == '\t' || s[pos] == '\n' || s[pos] == '\r') {
		pos++
	}
	return pos
}

// readArgs reads "(item, item, ...)" starting at the opening parenthesis.
// Items are unsigned integers or single-quoted strings.
func readArgs(s string, pos int) ([]string, int, error) {
	pos++ // (
	args := []string{}
	for {
		pos = skipSpace(s, pos)
		if pos >= len(s) {
			return nil, pos, errors.New("unterminated argument list")
		}
		var item string
		switch c := s[pos]; {
		case c == '\'':
			end, err := quotedEnd(s, pos)
			if err != nil {
				return nil, pos, err
			}
			item, pos = s[pos:end], end
		case c >= '0' && c <= '9':
			start := pos
			for pos < len(s) && s[pos] >= '0' && s[pos] <= '9' {
				pos++
			}
			item = s[start:pos]
		default:
			return nil, pos, fmt.Errorf("unexpected %q in argument list", c)
		}
		args = append(args, item)
		pos = skipSpace(s, pos)
		if pos >= len(s) {
			return nil, pos, errors.New("unterminated argument list")
		}
		switch s[pos] {
		case ',':
			pos++
		case ')':
			return args, pos + 1, nil
		default:
			return nil, pos, fmt.Errorf("unexpected %q in argument list", s[pos])
		}
	}
}

// quotedEnd returns the offset just past the single-quoted string starting at
// pos. A doubled quote or a backslash escapes the next character.
func quotedEnd(s string, pos int) (int, error) {
	for i := pos + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\'':
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			return i + 1, nil
		}
	}
	return 0, errors.New("unterminated string in argument list")
}
