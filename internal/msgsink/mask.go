package msgsink

import "sync"

// Go has no thread-local storage, and this masking stack exists to let
// one call path silence expected errors (e.g. probing a port that may
// not exist yet) without a global, permanent effect on other
// goroutines. We get the same isolation by keying the mask stack
// off the calling goroutine's runtime ID, read via the same trick the
// standard library's race detector and most goroutine-local-storage
// shims use: parsing it out of a runtime.Stack() dump. It is here purely
// to back Mask/Unmask's stack discipline, not for anything perf-sensitive
// (masking is only ever pushed around a handful of calls at a time).

var (
	maskMu    sync.Mutex
	maskStack = map[int64][]error{}
)

// Mask pushes err onto the calling goroutine's error mask stack. While
// masked, Log() calls naming an error for which errors.Is(err, masked)
// holds are suppressed (the LOG emission only; callers still see the
// return value).
func Mask(err error) {
	id := goroutineID()
	maskMu.Lock()
	maskStack[id] = append(maskStack[id], err)
	maskMu.Unlock()
}

// Unmask pops the most recently pushed mask for the calling goroutine.
func Unmask() {
	id := goroutineID()
	maskMu.Lock()
	defer maskMu.Unlock()
	stack := maskStack[id]
	if len(stack) == 0 {
		return
	}
	maskStack[id] = stack[:len(stack)-1]
	if len(maskStack[id]) == 0 {
		delete(maskStack, id)
	}
}

// MaskedDuring runs fn with err masked for the duration of the call,
// unmasking unconditionally on return (including on panic).
func MaskedDuring(err error, fn func()) {
	Mask(err)
	defer Unmask()
	fn()
}

func isMasked(err error) bool {
	id := goroutineID()
	maskMu.Lock()
	stack := append([]error(nil), maskStack[id]...)
	maskMu.Unlock()
	for _, m := range stack {
		if errorsIs(err, m) {
			return true
		}
	}
	return false
}
