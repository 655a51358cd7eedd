package formiddb

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// scanDump parses a FormID dump, calling add for every valid line and skip
// for every malformed one. An error from add stops the scan.
func scanDump(r io.Reader, add func(lineNo int, plugin, formID, entry string) error, skip func(lineNo int, line string)) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if lineNo == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			skip(lineNo, line)
			continue
		}
		plugin := strings.TrimSpace(parts[0])
		formID := NormalizeFormID(parts[1])
		entry := strings.TrimSpace(parts[2])
		if plugin == "" || entry == "" || !validFormID(formID) {
			skip(lineNo, line)
			continue
		}
		if err := add(lineNo, plugin, formID, entry); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read formid dump: %w", err)
	}
	return nil
}

func validFormID(id string) bool {
	if len(id) != 6 {
		return false
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
