package report

import (
	"strconv"
	"strings"
)

const goroutineHeader = "goroutine "

// ParseGoroutines splits a runtime.Stack dump into threads and frames.
// Blocks that don't start with a goroutine header are skipped.
func ParseGoroutines(dump []byte) []ThreadInfo {
	var threads []ThreadInfo
	for _, block := range strings.Split(string(dump), "\n\n") {
		if t, ok := parseGoroutine(block); ok {
			threads = append(threads, t)
		}
	}
	return threads
}

func parseGoroutine(block string) (ThreadInfo, bool) {
	lines := strings.Split(strings.TrimSpace(block), "\n")
	id, state, ok := parseHeader(lines[0])
	if !ok {
		return ThreadInfo{}, false
	}

	t := ThreadInfo{Id: id, State: state}
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		if strings.HasPrefix(line, "...") {
			continue
		}

		var location string
		if i+1 < len(lines) && strings.HasPrefix(lines[i+1], "\t") {
			location = lines[i+1]
			i++
		}

		if strings.HasPrefix(line, "created by ") {
			creator := strings.TrimPrefix(line, "created by ")
			if idx := strings.Index(creator, " in goroutine "); idx >= 0 {
				creator = creator[:idx]
			}
			t.CreatedBy = creator
			continue
		}

		frame := ThreadFrame{
			Frame:    uint(len(t.Frames)),
			Function: functionName(line),
		}
		frame.File, frame.Line, frame.Offset = parseLocation(location)
		t.Frames = append(t.Frames, frame)
	}
	t.FrameCount = uint(len(t.Frames))
	return t, true
}

// parseHeader reads "goroutine 7 [chan receive, 2 minutes]:".
func parseHeader(line string) (uint64, string, bool) {
	if !strings.HasPrefix(line, goroutineHeader) {
		return 0, "", false
	}
	rest := line[len(goroutineHeader):]
	sp := strings.IndexByte(rest, ' ')
	if sp < 0 {
		return 0, "", false
	}
	id, err := strconv.ParseUint(rest[:sp], 10, 64)
	if err != nil {
		return 0, "", false
	}

	state := rest[sp+1:]
	state = strings.TrimSuffix(state, ":")
	state = strings.TrimPrefix(state, "[")
	state = strings.TrimSuffix(state, "]")
	return id, state, true
}

// functionName drops the argument list from "pkg.(*T).Method(0x1, 0x2)".
func functionName(line string) string {
	if !strings.HasSuffix(line, ")") {
		return line
	}
	if idx := strings.LastIndexByte(line, '('); idx > 0 {
		return line[:idx]
	}
	return line
}

// parseLocation reads "\t/path/file.go:42 +0x1d".
func parseLocation(line string) (string, uint, string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", 0, ""
	}

	var offset string
	if idx := strings.LastIndex(line, " +"); idx >= 0 {
		offset = line[idx+2:]
		line = line[:idx]
	}

	colon := strings.LastIndexByte(line, ':')
	if colon < 0 {
		return line, 0, offset
	}
	n, err := strconv.ParseUint(line[colon+1:], 10, 32)
	if err != nil {
		return line, 0, offset
	}
	return line[:colon], uint(n), offset
}
