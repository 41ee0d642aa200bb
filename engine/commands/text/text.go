// Package text formats the help text of the CLI commands.
package text

import (
	"strings"
)

// Indentation prefixes every example line.
const Indentation = `  `

// LongDesc trims s and removes the indentation its lines share, so descriptions can be written
// as indented raw strings.
func LongDesc(s string) string {
	return strings.Join(dedent(s), "\n")
}

// Examples trims s and indents every line by Indentation.
func Examples(s string) string {
	lines := dedent(s)
	for i, line := range lines {
		if line != "" {
			lines[i] = Indentation + line
		}
	}

	return strings.Join(lines, "\n")
}

func dedent(s string) []string {
	s = strings.TrimRight(strings.TrimLeft(s, "\n"), " \t\n")
	if strings.TrimSpace(s) == "" {
		return []string{}
	}

	lines := strings.Split(s, "\n")
	margin := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	for i, line := range lines {
		if len(line) >= margin {
			line = line[margin:]
		}
		lines[i] = strings.TrimRight(line, " \t")
	}

	return lines
}
