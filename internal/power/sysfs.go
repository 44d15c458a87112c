package power

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/telemetrylab/internal/errors"
	"codeberg.org/mutker/telemetrylab/internal/logger"
	"github.com/spf13/afero"
)

const (
	DefaultSysfsRoot  = "/sys"
	DefaultLowBattery = 20

	supplyDir       = "class/power_supply"
	platformProfile = "firmware/acpi/platform_profile"
)

// Supply is one entry under /sys/class/power_supply
type Supply struct {
	Name     string
	Type     string
	Status   string
	Online   bool
	Capacity int
}

// Sysfs derives the power state from the Linux power_supply class and the
// ACPI platform profile.
type Sysfs struct {
	fs         afero.Fs
	root       string
	lowBattery int
	log        logger.Logger
}

// NewSysfs reads from fs rooted at root. lowBattery is the capacity
// percentage at or below which a discharging battery counts as power saving.
func NewSysfs(fs afero.Fs, root string, lowBattery int, log logger.Logger) *Sysfs {
	if root == "" {
		root = DefaultSysfsRoot
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sysfs{
		fs:         fs,
		root:       root,
		lowBattery: lowBattery,
		log:        log,
	}
}

// IsPowerSavingActive is true when the platform profile asks for low power,
// or when the machine runs on a discharging battery with no mains supply
// online, or when the battery is at or below the low threshold. Read errors
// count as not saving.
func (s *Sysfs) IsPowerSavingActive() bool {
	if profile := s.readString(filepath.Join(s.root, platformProfile)); profile == "low-power" || profile == "quiet" {
		s.log.Debug().Str("platform_profile", profile).Msg("Power saving requested by platform profile")
		return true
	}

	supplies, err := s.Supplies()
	if err != nil {
		s.log.Debug().Err(err).Msg("Failed to read power supplies")
		return false
	}

	mainsOnline := false
	discharging := false
	low := false
	for _, sup := range supplies {
		switch sup.Type {
		case "Mains", "USB":
			mainsOnline = mainsOnline || sup.Online
		case "Battery":
			if sup.Status == "Discharging" {
				discharging = true
				if s.lowBattery > 0 && sup.Capacity > 0 && sup.Capacity <= s.lowBattery {
					low = true
				}
			}
		}
	}

	s.log.Debug().
		Bool("mains_online", mainsOnline).
		Bool("discharging", discharging).
		Bool("low_battery", low).
		Msg("Power supply state")

	return low || (discharging && !mainsOnline)
}

// Supplies lists the power supplies found under the sysfs root
func (s *Sysfs) Supplies() ([]Supply, error) {
	errFactory := errors.New()

	dir := filepath.Join(s.root, supplyDir)
	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errFactory.Wrap(ErrReadSupply, err)
	}

	supplies := make([]Supply, 0, len(infos))
	for _, info := range infos {
		base := filepath.Join(dir, info.Name())
		sup := Supply{
			Name:   info.Name(),
			Type:   s.readString(filepath.Join(base, "type")),
			Status: s.readString(filepath.Join(base, "status")),
			Online: s.readString(filepath.Join(base, "online")) == "1",
		}

		if raw := s.readString(filepath.Join(base, "capacity")); raw != "" {
			capacity, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errFactory.WithData(ErrParseCapacity, struct {
					Supply string
					Value  string
				}{
					Supply: info.Name(),
					Value:  raw,
				})
			}
			sup.Capacity = capacity
		}

		supplies = append(supplies, sup)
	}

	return supplies, nil
}

func (s *Sysfs) readString(path string) string {
	b, err := afero.ReadFile(s.fs, path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// FromMode builds the source for a configured mode. Auto reads the host
// sysfs.
func FromMode(mode Mode, root string, lowBattery int, log logger.Logger) (Source, error) {
	switch mode {
	case ModeOn:
		return Static(true), nil
	case ModeOff:
		return Static(false), nil
	case ModeAuto, "":
		return NewSysfs(afero.NewReadOnlyFs(afero.NewOsFs()), root, lowBattery, log), nil
	default:
		return nil, errors.New().WithData(ErrInvalidMode, string(mode))
	}
}
