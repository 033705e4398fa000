package replay

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pb33f/harhar"
)

// Skipped is an entry that could not be converted.
type Skipped struct {
	Index int
	Err   error
}

// Result reports a conversion run.
type Result struct {
	*Summary
	Written int
	Skipped []Skipped
}

// WriteLines converts every entry read from r and writes one JSON mirror
// record per line to w. Entries that cannot be converted are skipped.
func WriteLines(r io.Reader, w io.Writer, opts ConvertOptions) (*Result, error) {
	bw := bufio.NewWriter(w)
	result := &Result{}

	summary, err := Stream(r, func(index int, entry *harhar.Entry) error {
		mirror, err := ToMirror(entry, opts)
		if err != nil {
			result.Skipped = append(result.Skipped, Skipped{Index: index, Err: err})
			return nil
		}
		line, err := json.Marshal(mirror)
		if err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", index, err)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return err
		}
		result.Written++
		return nil
	})
	result.Summary = summary
	if err != nil {
		return result, err
	}
	return result, bw.Flush()
}
