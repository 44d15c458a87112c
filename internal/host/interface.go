package host

// Host keeps the process alive while sampling runs and surfaces a
// persistent status indication.
type Host interface {
	RequestStart(intensity, frameRateHz int) error
	RequestStop() error
}

// Noop accepts every request and does nothing
type Noop struct{}

func (Noop) RequestStart(int, int) error { return nil }
func (Noop) RequestStop() error          { return nil }
