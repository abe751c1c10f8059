package simulator

import (
	"fmt"

	"uIntrospector/src/introspection"
	"uIntrospector/src/misc"
)

type Platform interface {
	Init(command_line_parser *misc.CommandLineParser, config *misc.Config)
	Fini()
	IsFinished() bool
	Cycle()
	Dump()
}

func newPlatformForMode(mode misc.PlatformMode) Platform {
	switch mode {
	case misc.PlatformModeTdp:
		return new(TdpPlatform)
	case misc.PlatformModeTrace:
		return new(TracePlatform)
	default:
		panic(fmt.Sprintf("unsupported platform mode: %s", mode))
	}
}

// newIntrospector builds the system described by config. A configuration
// that does not build is fatal.
func newIntrospector(config *misc.Config) *introspection.Introspector {
	introspector, err := introspection.New(config, introspection.WithLogger(misc.Logger()))
	if err != nil {
		panic(err)
	}
	return introspector
}
