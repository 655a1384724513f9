package scanner

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	// Pattern: #define <X>String "<key>"
	stringMacroPattern = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*define[ \t]+(\w+)String[ \t]+"((?:[^"\\\n]|\\.)*)"`)

	// Pattern: #define FIRST_<X>_PARAM <target>
	boundaryPattern = regexp.MustCompile(`(?m)^[ \t]*#[ \t]*define[ \t]+(FIRST_\w*_PARAM\w*)[ \t]+([\w>.\-]+)`)

	// Pattern: class <name> : public [virtual] <parent> {
	classPattern = regexp.MustCompile(`(?m)^[ \t]*class[ \t]+(?:\w+[ \t]+)*(\w+)[ \t]*(?::[ \t]*(?:public|protected|private)[ \t]+(?:virtual[ \t]+)?(\w+))?[^;{]*\{`)

	// Pattern: int <name>; [/* [asynParamT] Setting|Readback|Action */]
	memberPattern = regexp.MustCompile(`(?m)^[ \t]*int[ \t]+(\w+)[ \t]*;[ \t]*(?:/\*[ \t]*(?:(asynParam\w+)[ \t]+)?(Setting|Readback|Action)[ \t]*\*/)?`)

	// Pattern: [prefix]add|createParam|registerParam(<args>); [/* annotation */]
	registrationPattern = regexp.MustCompile(`\b(?:this->|\w+->|\w+\.)?(add|createParam|registerParam)[ \t]*\(([^;]*?)\)[ \t]*;([ \t]*/\*[^*]*\*/)?`)

	// Pattern: /* Group: <name> */
	groupPattern = regexp.MustCompile(`/\*[ \t]*Group:[ \t]*([^*]*?)[ \t]*\*/`)

	// Pattern: /* [asynParamT] Setting|Readback|Action */
	annotationPattern = regexp.MustCompile(`/\*[ \t]*(?:asynParam\w+[ \t]+)?(Setting|Readback|Action)[ \t]*\*/`)

	// Pattern: &<handle> or &this-><handle>
	handlePattern = regexp.MustCompile(`^&[ \t]*(?:this->)?(\w+)$`)

	identPattern = regexp.MustCompile(`^[A-Za-z_]\w*$`)
)

// splitArgs splits a call argument list on top-level commas
func splitArgs(s string) []string {
	var (
		args  []string
		depth int
		inStr bool
		start int
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inStr {
			if c == '\\' {
				i++
			} else if c == '"' {
				inStr = false
			}
			continue
		}
		switch c {
		case '"':
			inStr = true
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(args) > 0 {
		args = append(args, tail)
	}
	return args
}

// unquote decodes a C string literal
func unquote(lit string) (string, bool) {
	if len(lit) < 2 || lit[0] != '"' || lit[len(lit)-1] != '"' {
		return "", false
	}
	s, err := strconv.Unquote(lit)
	if err != nil {
		return lit[1 : len(lit)-1], true
	}
	return s, true
}

// span is a half-open byte range
type span struct{ start, end int }

// commentSpans returns the byte ranges covered by comments, skipping string
// and character literals
func commentSpans(text string) []span {
	var spans []span
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '"', '\'':
			q := text[i]
			for i++; i < len(text) && text[i] != q && text[i] != '\n'; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		case '/':
			if i+1 >= len(text) {
				continue
			}
			switch text[i+1] {
			case '/':
				end := strings.IndexByte(text[i:], '\n')
				if end < 0 {
					end = len(text) - i
				}
				spans = append(spans, span{i, i + end})
				i += end
			case '*':
				end := strings.Index(text[i+2:], "*/")
				if end < 0 {
					spans = append(spans, span{i, len(text)})
					return spans
				}
				spans = append(spans, span{i, i + 2 + end + 2})
				i += 2 + end + 1
			}
		}
	}
	return spans
}

func inSpans(spans []span, off int) bool {
	for _, s := range spans {
		if off < s.start {
			return false
		}
		if off < s.end {
			return true
		}
	}
	return false
}

// lineIndex maps byte offsets to 1-based line numbers
type lineIndex []int

func newLineIndex(text string) lineIndex {
	idx := lineIndex{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (idx lineIndex) line(off int) int {
	lo, hi := 0, len(idx)
	for lo+1 < hi {
		mid := (lo + hi) / 2
		if idx[mid] <= off {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo + 1
}
