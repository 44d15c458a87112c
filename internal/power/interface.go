package power

// Source reports whether the system asks applications to save power
type Source interface {
	IsPowerSavingActive() bool
}

// Mode selects how the power state is obtained
type Mode string

const (
	ModeAuto Mode = "auto"
	ModeOn   Mode = "on"
	ModeOff  Mode = "off"
)

// IsValid reports whether m is a known mode
func (m Mode) IsValid() bool {
	switch m {
	case ModeAuto, ModeOn, ModeOff:
		return true
	default:
		return false
	}
}

// Static is a fixed power state
type Static bool

func (s Static) IsPowerSavingActive() bool {
	return bool(s)
}

// Func adapts a function to the Source interface
type Func func() bool

func (f Func) IsPowerSavingActive() bool {
	return f()
}
