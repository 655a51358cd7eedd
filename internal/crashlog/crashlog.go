// Package crashlog parses crash logs written by Buffout 4 and compatible
// crash generators into crashscan.ParsedLog values.
package crashlog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/crashscan/crashscan-go/internal/safefile"
	"github.com/crashscan/crashscan-go/pkg/crashscan"
)

// MaxLogSize bounds the crash logs ParseFile accepts.
const MaxLogSize = 32 << 20

// maxLineSize bounds a single crash log line.
const maxLineSize = 1 << 20

// ErrNotCrashLog is returned when the input has none of the crash log
// landmarks: version header, main error or known sections.
var ErrNotCrashLog = errors.New("input is not a crash log")

// ParseFile reads and parses the crash log at path.
func ParseFile(path string) (*crashscan.ParsedLog, error) {
	data, err := safefile.ReadRegular(path, MaxLogSize)
	if err != nil {
		return nil, fmt.Errorf("read crash log: %w", err)
	}
	log, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	log.FilePath = path
	return log, nil
}

// section is the part of the log the parser is in.
type section int

const (
	inHeader section = iota
	inSettings
	inSystemSpecs
	inCallStack
	inModules
	inXSEPlugins
	inPlugins
	inOther
)

// parser holds the state of one Parse call.
type parser struct {
	log       *crashscan.ParsedLog
	section   section
	headers   int
	landmarks int
	modules   map[string]bool
}

// Parse parses a crash log.
//
// Unknown sections and lines are ignored, so logs from newer crash
// generator versions still parse. Returns ErrNotCrashLog when nothing
// recognizable was found.
func Parse(r io.Reader) (*crashscan.ParsedLog, error) {
	p := &parser{
		log:     &crashscan.ParsedLog{Settings: make(map[string]string)},
		modules: make(map[string]bool),
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		p.parseLine(strings.TrimRight(line, "\r\n\t "))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan crash log: %w", err)
	}
	if p.landmarks == 0 {
		return nil, ErrNotCrashLog
	}
	return p.log, nil
}

func (p *parser) parseLine(line string) {
	if line == "" {
		return
	}

	// Section headers start at column 0.
	if line[0] != '\t' && line[0] != ' ' {
		if m := sectionPattern.FindStringSubmatch(line); m != nil {
			p.enter(m[1])
			return
		}
		if strings.HasPrefix(line, mainErrorPrefix) {
			p.log.MainError = line
			p.section = inSettings
			p.landmarks++
			return
		}
	}

	text := strings.TrimSpace(line)
	switch p.section {
	case inHeader:
		p.parseHeader(text)
	case inSettings:
		p.parseSetting(text)
	case inSystemSpecs:
		p.log.SystemSpecs = append(p.log.SystemSpecs, text)
	case inCallStack:
		p.log.CallStack = append(p.log.CallStack, strings.TrimPrefix(line, "\t"))
	case inModules:
		if m := modulePattern.FindStringSubmatch(text); m != nil {
			p.addModule(m[1])
		}
	case inXSEPlugins:
		if m := dllPattern.FindStringSubmatch(text); m != nil {
			p.addModule(m[1])
		} else {
			p.addModule(text)
		}
	case inPlugins:
		p.parsePlugin(text)
	}
}

func (p *parser) enter(name string) {
	p.landmarks++
	switch {
	case name == sectionSystemSpecs:
		p.section = inSystemSpecs
	case name == sectionCallStack, name == sectionRegisters, name == sectionStack:
		p.section = inCallStack
	case name == sectionModules:
		p.section = inModules
	case name == sectionPlugins, name == sectionGamePlugins:
		p.section = inPlugins
	case strings.HasSuffix(name, " PLUGINS"):
		// F4SE PLUGINS, SKSE PLUGINS, ...
		p.section = inXSEPlugins
	default:
		p.section = inOther
	}
}

// parseHeader reads the game and crash generator version lines.
func (p *parser) parseHeader(text string) {
	m := versionLinePattern.FindStringSubmatch(text)
	if m == nil {
		return
	}
	ver := strings.ReplaceAll(m[2], "-", ".")
	switch p.headers {
	case 0:
		p.log.GameVersion = ver
	case 1:
		p.log.CrashGenName = strings.TrimSpace(m[1])
		p.log.CrashGenVersion = ver
	default:
		return
	}
	p.headers++
	p.landmarks++
}

func (p *parser) parseSetting(text string) {
	if settingsGroupPattern.MatchString(text) {
		return
	}
	if m := settingPattern.FindStringSubmatch(text); m != nil {
		p.log.Settings[m[1]] = strings.TrimSpace(m[2])
	}
}

func (p *parser) parsePlugin(text string) {
	if m := pluginPattern.FindStringSubmatch(text); m != nil {
		p.log.Plugins.Add(m[2], m[1])
		return
	}
	if pluginFilePattern.MatchString(text) {
		p.log.Plugins.Add(text, "")
	}
}

func (p *parser) addModule(name string) {
	name = strings.TrimSpace(name)
	key := strings.ToLower(name)
	if name == "" || p.modules[key] {
		return
	}
	p.modules[key] = true
	p.log.XSEModules = append(p.log.XSEModules, name)
}
