//go:build !tinygo

package watchdog

// SimFeeder is a HardwareFeeder test double that just counts feeds.
type SimFeeder struct {
	FeedCount int
}

func (f *SimFeeder) Feed() {
	f.FeedCount++
}

var _ HardwareFeeder = (*SimFeeder)(nil)
