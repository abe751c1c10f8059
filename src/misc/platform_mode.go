package misc

// PlatformMode defines what the simulator shell does with the configured
// system once the registry is built.
type PlatformMode string

const (
	// PlatformModeTdp builds the system and reports peak power and area.
	PlatformModeTdp PlatformMode = "tdp"
	// PlatformModeTrace replays a trace of per-interval activity counters.
	PlatformModeTrace PlatformMode = "trace"
)

// DefaultPlatformMode returns the mode used when no explicit selection is made.
func DefaultPlatformMode() PlatformMode {
	return PlatformModeTrace
}

// PlatformModeFromString converts an arbitrary string into a PlatformMode. When
// the provided value is unknown the bool return will be false.
func PlatformModeFromString(value string) (PlatformMode, bool) {
	switch value {
	case string(PlatformModeTdp):
		return PlatformModeTdp, true
	case string(PlatformModeTrace):
		return PlatformModeTrace, true
	default:
		return "", false
	}
}
