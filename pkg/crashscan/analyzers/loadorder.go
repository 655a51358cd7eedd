package analyzers

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/crashscan/crashscan-go/internal/safefile"
	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

// maxLoadOrderSize bounds external load order files.
const maxLoadOrderSize = 1 << 20

// ReadLoadOrder reads a load order file such as loadorder.txt or plugins.txt.
func ReadLoadOrder(path string) (crashscan.PluginTable, error) {
	data, err := safefile.ReadRegular(path, maxLoadOrderSize)
	if err != nil {
		return crashscan.PluginTable{}, fmt.Errorf("read load order: %w", err)
	}
	return ParseLoadOrder(data), nil
}

// FE is the light plugin prefix and FF holds runtime-created forms.
const (
	maxFullSlot  = 0xFD
	maxLightSlot = 0xFFF
)

// ParseLoadOrder parses one plugin per line. Blank lines, "#" comments and
// lines that are not .esp, .esm or .esl files are skipped; a leading "*"
// (the active marker of plugins.txt) is removed. Full plugins get ids
// 00, 01, ... and light (.esl) plugins FE:000, FE:001, ... in file order.
// A repeated plugin keeps its first id. Plugins past the last usable slot
// (FD for full plugins, FE:FFF for light ones) are kept without an id.
func ParseLoadOrder(data []byte) crashscan.PluginTable {
	var (
		table         crashscan.PluginTable
		regular, lite int
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sc.Text()), "\ufeff"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "*"))
		lower := strings.ToLower(line)
		if table.Has(line) {
			continue
		}
		switch {
		case strings.HasSuffix(lower, ".esl"):
			id := ""
			if lite <= maxLightSlot {
				id = fmt.Sprintf("FE:%03X", lite)
			}
			table.Add(line, id)
			lite++
		case strings.HasSuffix(lower, ".esp"), strings.HasSuffix(lower, ".esm"):
			id := ""
			if regular <= maxFullSlot {
				id = fmt.Sprintf("%02X", regular)
			}
			table.Add(line, id)
			regular++
		}
	}
	return table
}
