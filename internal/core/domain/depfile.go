package domain

import "strings"

// ParseDepfile returns the prerequisites of the first rule in a make-style dependency
// file, as written by `cc -MMD -MF`. Continuation lines are joined and escaped spaces,
// hashes and dollars are unescaped. Phony rules added by -MP are ignored.
func ParseDepfile(data []byte) []string {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.ReplaceAll(text, "\\\n", " ")
	line, _, _ := strings.Cut(text, "\n")

	prereqs, ok := cutRuleTarget(line)
	if !ok {
		return nil
	}
	return splitMakeWords(prereqs)
}

// cutRuleTarget drops "target:" from a rule line. The separating colon is the first one
// followed by blank or end of line, which keeps drive letters such as C:\ intact.
func cutRuleTarget(line string) (string, bool) {
	for i := 0; i < len(line); i++ {
		if line[i] != ':' {
			continue
		}
		if i+1 == len(line) || line[i+1] == ' ' || line[i+1] == '\t' {
			return line[i+1:], true
		}
	}
	return "", false
}

func splitMakeWords(s string) []string {
	var (
		words []string
		word  strings.Builder
	)
	flush := func() {
		if word.Len() > 0 {
			words = append(words, word.String())
			word.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && (s[i+1] == ' ' || s[i+1] == '#'):
			word.WriteByte(s[i+1])
			i++
		case c == '$' && i+1 < len(s) && s[i+1] == '$':
			word.WriteByte('$')
			i++
		case c == ' ' || c == '\t':
			flush()
		default:
			word.WriteByte(c)
		}
	}
	flush()
	return words
}
