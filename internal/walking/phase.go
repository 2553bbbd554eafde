package walking

type Phase int

const (
	Idle Phase = iota
	Configured
	Preparing
	Prepared
	Walking
	Paused
	Stopped
)

var phaseNames = [...]string{
	Idle:       "idle",
	Configured: "configured",
	Preparing:  "preparing",
	Prepared:   "prepared",
	Walking:    "walking",
	Paused:     "paused",
	Stopped:    "stopped",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}
