package testext

import "sync"

// Sequence is a convenient way to capture a series of values in a specified order that you can use
// to determine if code was fired in a specific sequence/order. It's safe to append from several
// goroutines at once, although then the order is only as deterministic as your code makes it.
type Sequence struct {
	mu     sync.Mutex
	values []string
}

// Append writes the next value for the piece of code that executed.
func (seq *Sequence) Append(value string) {
	seq.mu.Lock()
	defer seq.mu.Unlock()
	seq.values = append(seq.values, value)
}

// Values returns all the values that you collected during the test case.
func (seq *Sequence) Values() []string {
	seq.mu.Lock()
	defer seq.mu.Unlock()
	return append([]string(nil), seq.values...)
}
