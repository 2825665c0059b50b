package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// promptReader reads yes/no answers from the user, one per line.
type promptReader struct {
	scanner *bufio.Scanner
}

func newPromptReader(input io.Reader) *promptReader {
	return &promptReader{scanner: bufio.NewScanner(input)}
}

// confirm writes `question` to `output` and waits for an answer. Anything
// other than "y" or "yes" is a no, and so is running out of input.
func (prompt *promptReader) confirm(output io.Writer, question string) bool {
	fmt.Fprint(output, question)
	if !prompt.scanner.Scan() {
		fmt.Fprintln(output)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(prompt.scanner.Text())) {
	case "y", "yes":
		return true
	}
	return false
}
