package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"uIntrospector/src/misc"
	"uIntrospector/src/simulator"
)

func main() {
	command_line_parser := InitCommandLineParser()
	command_line_parser.Parse(os.Args)

	if command_line_parser.IsArgSet("help") {
		fmt.Printf("%s", command_line_parser.StringifyHelpMsgs())
		return
	}

	misc.ConfigureRuntime(command_line_parser)

	command_line_validator := new(misc.CommandLineValidator)
	command_line_validator.Init(command_line_parser)
	command_line_validator.Validate()

	config_loader := new(misc.ConfigLoader)
	config_loader.Init(command_line_parser)

	log_config := config_loader.Config().Log
	if log_level := command_line_parser.StringParameter("log_level"); log_level != "" {
		log_config.Level = log_level
	}
	logger, err := misc.NewLogger(log_config)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	run_id := uuid.New().String()
	logger = logger.With(zap.String("run_id", run_id))
	misc.SetLogger(logger)

	bin_dirpath := command_line_parser.StringParameter("bin_dirpath")

	args_file_dumper := new(misc.FileDumper)
	args_file_dumper.Init(filepath.Join(bin_dirpath, "args.txt"))
	args_file_dumper.WriteLines([]string{"run_id: " + run_id, command_line_parser.StringifyArgs()})

	options_file_dumper := new(misc.FileDumper)
	options_file_dumper.Init(filepath.Join(bin_dirpath, "options.txt"))
	options_file_dumper.WriteLines([]string{command_line_parser.StringifyOptions()})

	logger.Info("starting",
		zap.String("platform_mode", string(misc.RuntimePlatformMode())),
		zap.String("config_filepath", config_loader.ConfigFilepath()))

	simulator_ := new(simulator.Simulator)
	simulator_.Init(command_line_parser, config_loader.Config())

	for !simulator_.IsFinished() {
		simulator_.Cycle()
	}

	simulator_.Dump()
	simulator_.Fini()

	logger.Info("finished", zap.String("bin_dirpath", bin_dirpath))
}

func InitCommandLineParser() *misc.CommandLineParser {
	command_line_parser := new(misc.CommandLineParser)
	command_line_parser.Init()

	command_line_parser.AddOption(
		misc.STRING,
		"platform_mode",
		string(misc.DefaultPlatformMode()),
		"what to do with the configured system (tdp|trace)",
	)

	command_line_parser.AddOption(misc.STRING, "root_dirpath", ".", "path to the root directory")
	command_line_parser.AddOption(misc.STRING, "bin_dirpath", "bin", "path to the bin directory")
	command_line_parser.AddOption(
		misc.STRING,
		"config_filepath",
		"configs/system.yaml",
		"system configuration, relative to root_dirpath",
	)
	command_line_parser.AddOption(
		misc.STRING,
		"trace_filepath",
		"",
		"activity trace replayed in trace mode, relative to root_dirpath",
	)

	command_line_parser.AddOption(
		misc.INT,
		"thermal_interval",
		"1",
		"trace intervals per thermal step",
	)
	command_line_parser.AddOption(
		misc.INT,
		"reliability_interval",
		"1",
		"thermal steps per reliability step (0 disables reliability)",
	)
	command_line_parser.AddOption(
		misc.INT,
		"max_intervals",
		"0",
		"stop after this many trace intervals (0 replays the whole trace)",
	)

	command_line_parser.AddOption(
		misc.STRING,
		"log_level",
		"",
		"overrides the log level of the configuration (debug|info|warn|error)",
	)

	return command_line_parser
}
