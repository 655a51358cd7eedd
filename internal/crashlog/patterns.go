package crashlog

import "regexp"

// Section headers as written by Buffout 4 and Crash Logger SSE.
const (
	sectionSystemSpecs = "SYSTEM SPECS"
	sectionCallStack   = "PROBABLE CALL STACK"
	sectionRegisters   = "REGISTERS"
	sectionStack       = "STACK"
	sectionModules     = "MODULES"
	sectionPlugins     = "PLUGINS"
	sectionGamePlugins = "GAME PLUGINS"
)

// mainErrorPrefix starts the unhandled exception line.
const mainErrorPrefix = "Unhandled exception"

// Compiled regex patterns for crash log lines.
var (
	// Matches: "Fallout 4 v1.10.163", "Buffout 4 v1.28.6 Feb 12 2023 22:01:56"
	// Matches: "CrashLoggerSSE v1-12-1-0 Nov 18 2023 13:13:41"
	// Captures: (1) product name, (2) version
	versionLinePattern = regexp.MustCompile(`^(.+?)\s+v(\d+(?:[.\-]\d+)*)\b`)

	// Matches: "SYSTEM SPECS:", "F4SE PLUGINS:"
	// Captures: (1) section name
	sectionPattern = regexp.MustCompile(`^([A-Z0-9][A-Z0-9 ]*[A-Z0-9]):\s*$`)

	// Matches: "[Patches]" in the settings block
	// Captures: (1) settings group
	settingsGroupPattern = regexp.MustCompile(`^\[([^\]]+)\]$`)

	// Matches: "Achievements: true"
	// Captures: (1) setting name, (2) raw value
	settingPattern = regexp.MustCompile(`^([A-Za-z0-9_.]+):\s*(.*)$`)

	// Matches: "[00]     Fallout4.esm", "[FE:000] ccBGSFO4001.esl", "[FE:  0] x.esl"
	// Captures: (1) load order id, (2) plugin name
	pluginPattern = regexp.MustCompile(`^\[([0-9A-Fa-f: ]+)\]\s+(.+?)\s*$`)

	// Matches: "XINPUT1_3.dll   0x000000400000"
	// Captures: (1) module name
	modulePattern = regexp.MustCompile(`^(.+?)\s+0x[0-9A-Fa-f]+\s*$`)

	// Matches the DLL name at the start of "Buffout4.dll v1.28.6"
	// Captures: (1) dll name
	dllPattern = regexp.MustCompile(`(?i)^(.+?\.dll)\b`)

	// Matches: unloaded plugin names listed without an id
	pluginFilePattern = regexp.MustCompile(`(?i)\.(?:esp|esm|esl)$`)
)
