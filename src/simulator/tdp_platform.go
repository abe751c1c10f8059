package simulator

import (
	"go.uber.org/zap"

	"uIntrospector/src/introspection"
	"uIntrospector/src/misc"
)

// TdpPlatform builds the configured system and reports its peak power and
// area without replaying any activity.
type TdpPlatform struct {
	introspector *introspection.Introspector
	binDirpath   string
	statFactory  *misc.StatFactory
	finished     bool
}

func (this *TdpPlatform) Init(command_line_parser *misc.CommandLineParser, config *misc.Config) {
	this.setup(newIntrospector(config), command_line_parser.StringParameter("bin_dirpath"))
}

func (this *TdpPlatform) setup(introspector *introspection.Introspector, bin_dirpath string) {
	this.introspector = introspector
	this.binDirpath = bin_dirpath
	this.statFactory = new(misc.StatFactory)
	this.statFactory.Init("TdpPlatform")
}

func (this *TdpPlatform) Fini() {}

func (this *TdpPlatform) IsFinished() bool {
	return this.finished
}

func (this *TdpPlatform) Cycle() {
	reportEntities(this.statFactory, this.introspector, false)
	this.finished = true

	r := this.introspector.Registry()
	for _, id := range r.Packages() {
		pkg, _ := r.Package(id)
		tdp, _ := pkg.Power.Peak()
		misc.Logger().Info("package peak power",
			zap.String("package", pkg.Name),
			zap.Float64("tdp_watts", tdp.Total()),
			zap.Float64("area_square_metres", pkg.Area))
	}
}

func (this *TdpPlatform) Dump() {
	writeStats(this.binDirpath, "tdp", this.statFactory)
}
