package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// TranscriptSection is the plain-text record of one section: its extracted
// fields (in order) followed by the original page lines.
type TranscriptSection struct {
	Name   string
	Fields []Field
	Lines  []string
}

type Field struct {
	Name  string
	Value string
}

func WriteTranscript(w io.Writer, sections []TranscriptSection) error {
	bw := bufio.NewWriter(w)
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintf(bw, "=== %s ===\n", s.Name)
		for _, f := range s.Fields {
			fmt.Fprintf(bw, "%s: %s\n", f.Name, f.Value)
		}
		if len(s.Fields) > 0 && len(s.Lines) > 0 {
			fmt.Fprintln(bw)
		}
		for _, l := range s.Lines {
			fmt.Fprintln(bw, l)
		}
	}
	return bw.Flush()
}

func writeTranscriptFile(path string, sections []TranscriptSection) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	if err := WriteTranscript(f, sections); err != nil {
		_ = f.Close()
		return fmt.Errorf("write transcript: %w", err)
	}
	return f.Close()
}
