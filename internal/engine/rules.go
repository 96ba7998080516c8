package engine

import (
	"fmt"

	"monnet/internal/snapshot"
)

// Process-wide default cutoffs.
const (
	WarnThreshold  = 80.0
	AlertThreshold = 90.0
)

// Rule holds the warn and alert cutoffs for one metric family.
type Rule struct {
	Warn  float64 `json:"warn"  env:"WARN"`
	Alert float64 `json:"alert" env:"ALERT"`
}

func (r Rule) Validate() error {
	if r.Warn < 0 {
		return fmt.Errorf("warn threshold %v must not be negative", r.Warn)
	}
	if r.Alert <= r.Warn {
		return fmt.Errorf("alert threshold %v must exceed warn threshold %v", r.Alert, r.Warn)
	}
	return nil
}

// Rules is the threshold set for every numeric family.
type Rules struct {
	IoWait Rule `json:"iowait" envPrefix:"IOWAIT_"`
	CPU    Rule `json:"cpu"    envPrefix:"CPU_"`
	Memory Rule `json:"memory" envPrefix:"MEMORY_"`
	Disk   Rule `json:"disk"   envPrefix:"DISK_"`
}

func DefaultRules() Rules {
	def := Rule{Warn: WarnThreshold, Alert: AlertThreshold}
	return Rules{IoWait: def, CPU: def, Memory: def, Disk: def}
}

func (r Rules) Validate() error {
	checks := []struct {
		name string
		rule Rule
	}{
		{"iowait", r.IoWait},
		{"cpu", r.CPU},
		{"memory", r.Memory},
		{"disk", r.Disk},
	}
	for _, c := range checks {
		if err := c.rule.Validate(); err != nil {
			return fmt.Errorf("%s: %w", c.name, err)
		}
	}
	return nil
}

// ForFamily returns the rule applied to f's indicators.
func (r Rules) ForFamily(f snapshot.Family) (Rule, bool) {
	switch f {
	case snapshot.FamilyIoWait:
		return r.IoWait, true
	case snapshot.FamilyLoadAvg:
		return r.CPU, true
	case snapshot.FamilyMemory:
		return r.Memory, true
	case snapshot.FamilyDisk:
		return r.Disk, true
	}
	return Rule{}, false
}
