package misc

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

type CommandLineValidator struct {
	command_line_parser *CommandLineParser
}

func (this *CommandLineValidator) Init(command_line_parser *CommandLineParser) {
	this.command_line_parser = command_line_parser
}

func (this *CommandLineValidator) Validate() {
	platform_mode := this.command_line_parser.StringParameter("platform_mode")
	mode, ok := PlatformModeFromString(platform_mode)
	if !ok {
		err := fmt.Errorf("platform_mode %s is not supported", platform_mode)
		panic(err)
	}

	root_dirpath := this.command_line_parser.StringParameter("root_dirpath")
	if _, stat_err := os.Stat(root_dirpath); os.IsNotExist(stat_err) {
		err := fmt.Errorf("root_dirpath %s does not exist", root_dirpath)
		panic(err)
	}

	config_filepath := strings.TrimSpace(this.command_line_parser.StringParameter("config_filepath"))
	if config_filepath == "" {
		err := errors.New("config_filepath is empty")
		panic(err)
	}
	if _, stat_err := os.Stat(ResolveConfigPath(config_filepath, root_dirpath)); os.IsNotExist(stat_err) {
		err := fmt.Errorf("config_filepath %s does not exist", config_filepath)
		panic(err)
	}

	if mode == PlatformModeTrace {
		trace_filepath := strings.TrimSpace(this.command_line_parser.StringParameter("trace_filepath"))
		if trace_filepath == "" {
			err := errors.New("trace_filepath is empty")
			panic(err)
		}
		if _, stat_err := os.Stat(ResolveConfigPath(trace_filepath, root_dirpath)); os.IsNotExist(stat_err) {
			err := fmt.Errorf("trace_filepath %s does not exist", trace_filepath)
			panic(err)
		}
	}

	if this.command_line_parser.IntParameter("thermal_interval") <= 0 {
		err := errors.New("thermal_interval <= 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("reliability_interval") < 0 {
		err := errors.New("reliability_interval < 0")
		panic(err)
	}

	if this.command_line_parser.IntParameter("max_intervals") < 0 {
		err := errors.New("max_intervals < 0")
		panic(err)
	}

	if log_level := this.command_line_parser.StringParameter("log_level"); log_level != "" {
		if _, err := zapcore.ParseLevel(log_level); err != nil {
			panic(fmt.Errorf("log_level %s is not supported", log_level))
		}
	}
}
