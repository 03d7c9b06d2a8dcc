package msgsink

import (
	"bytes"
	"errors"
	"runtime"
	"strconv"
)

func errorsIs(err, target error) bool {
	return errors.Is(err, target)
}

// goroutineID extracts the numeric ID runtime.Stack prints at the head of
// every goroutine's trace ("goroutine 37 [running]:"). It is a well-worn
// hack, not a supported API, but it is the only way to key per-goroutine
// state without threading a context or argument through every call site,
// and the mask stack is read rarely enough (only around Log() calls) that
// its cost is irrelevant.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if !bytes.HasPrefix(b, []byte(prefix)) {
		return 0
	}
	b = b[len(prefix):]
	end := bytes.IndexByte(b, ' ')
	if end < 0 {
		return 0
	}
	id, err := strconv.ParseInt(string(b[:end]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
