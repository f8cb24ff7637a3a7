package tokenizer

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseMerges reads merges.txt. Each non-empty line holds two symbol strings
// separated by whitespace; rank is the line's position among the rules. A
// "#version" header on the first line is skipped.
func ParseMerges(r io.Reader) ([][2]string, error) {
	s := bufio.NewScanner(newTextReader(r))
	s.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var merges [][2]string
	for n := 1; s.Scan(); n++ {
		line := s.Text()
		if n == 1 && strings.HasPrefix(line, "#version") {
			continue
		}

		fields := strings.Fields(line)
		switch len(fields) {
		case 0:
			continue
		case 2:
			merges = append(merges, [2]string{fields[0], fields[1]})
		default:
			return nil, &LoadError{Source: "merges", Line: n, Err: fmt.Errorf("expected 2 fields, got %d", len(fields))}
		}
	}

	if err := s.Err(); err != nil {
		return nil, &LoadError{Source: "merges", Err: err}
	}
	return merges, nil
}
