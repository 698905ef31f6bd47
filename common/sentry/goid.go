package sentry

import (
	"bytes"
	"runtime"
	"strconv"
)

var goroutinePrefix = []byte("goroutine ")

// CurrentThread returns the id of the calling goroutine.
func CurrentThread() ThreadID {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseThreadID(buf[:n])
}

// parseThreadID reads the id out of a "goroutine N [state]:" header.
func parseThreadID(header []byte) ThreadID {
	if !bytes.HasPrefix(header, goroutinePrefix) {
		return 0
	}
	header = header[len(goroutinePrefix):]
	end := bytes.IndexByte(header, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseUint(string(header[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return ThreadID(id)
}

// threadStack returns the block for goroutine id out of an all-goroutine dump.
func threadStack(dump []byte, id ThreadID) []byte {
	for _, block := range bytes.Split(dump, []byte("\n\n")) {
		if parseThreadID(block) == id {
			return block
		}
	}
	return nil
}
