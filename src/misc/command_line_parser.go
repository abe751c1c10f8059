package misc

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

type OptionType int

const (
	INT OptionType = iota
	STRING
	FLOAT
)

type option struct {
	option_type   OptionType
	name          string
	default_value string
	help_msg      string
}

// CommandLineParser collects "--name value" options on a pflag set. Options
// are registered with AddOption before Parse.
type CommandLineParser struct {
	flag_set *pflag.FlagSet
	options  map[string]*option
	args     []string
}

func (this *CommandLineParser) Init() {
	this.flag_set = pflag.NewFlagSet("uIntrospector", pflag.ContinueOnError)
	this.flag_set.SortFlags = true
	this.flag_set.Usage = func() {}
	this.flag_set.BoolP("help", "h", false, "print this help message")
	this.options = make(map[string]*option)
}

func (this *CommandLineParser) AddOption(
	option_type OptionType,
	name string,
	default_value string,
	help_msg string,
) {
	if _, found := this.options[name]; found || name == "help" {
		err := fmt.Errorf("option %s is already added", name)
		panic(err)
	}

	switch option_type {
	case INT:
		value, err := strconv.ParseInt(default_value, 10, 64)
		if err != nil {
			panic(fmt.Errorf("default value %s of option %s is not an int", default_value, name))
		}
		this.flag_set.Int64(name, value, help_msg)
	case FLOAT:
		value, err := strconv.ParseFloat(default_value, 64)
		if err != nil {
			panic(fmt.Errorf("default value %s of option %s is not a float", default_value, name))
		}
		this.flag_set.Float64(name, value, help_msg)
	case STRING:
		this.flag_set.String(name, default_value, help_msg)
	default:
		panic(errors.New("option type is not valid"))
	}

	this.options[name] = &option{
		option_type:   option_type,
		name:          name,
		default_value: default_value,
		help_msg:      help_msg,
	}
}

// Parse reads os.Args-style arguments; args[0] is the program name.
func (this *CommandLineParser) Parse(args []string) {
	if len(args) > 0 {
		args = args[1:]
	}
	this.args = args

	err := this.flag_set.Parse(args)
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		panic(err)
	}

	if rest := this.flag_set.Args(); len(rest) > 0 {
		err := fmt.Errorf("unexpected argument %s", rest[0])
		panic(err)
	}
}

func (this *CommandLineParser) IsArgSet(name string) bool {
	if name == "help" {
		help, _ := this.flag_set.GetBool("help")
		return help
	}
	return this.flag_set.Changed(name)
}

func (this *CommandLineParser) IntParameter(name string) int64 {
	value, err := this.flag_set.GetInt64(this.lookup(name, INT))
	if err != nil {
		panic(err)
	}
	return value
}

func (this *CommandLineParser) FloatParameter(name string) float64 {
	value, err := this.flag_set.GetFloat64(this.lookup(name, FLOAT))
	if err != nil {
		panic(err)
	}
	return value
}

func (this *CommandLineParser) StringParameter(name string) string {
	value, err := this.flag_set.GetString(this.lookup(name, STRING))
	if err != nil {
		panic(err)
	}
	return value
}

func (this *CommandLineParser) StringifyHelpMsgs() string {
	return "usage: uIntrospector [options]\n" + this.flag_set.FlagUsages()
}

// StringifyArgs returns the raw arguments as given.
func (this *CommandLineParser) StringifyArgs() string {
	return strings.Join(this.args, " ")
}

// StringifyOptions returns every option with its effective value, one
// "name: value" line per option.
func (this *CommandLineParser) StringifyOptions() string {
	names := make([]string, 0, len(this.options))
	for name := range this.options {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, this.flag_set.Lookup(name).Value.String()))
	}
	return strings.Join(lines, "\n")
}

func (this *CommandLineParser) lookup(name string, option_type OptionType) string {
	option, found := this.options[name]
	if !found {
		err := fmt.Errorf("option %s does not exist", name)
		panic(err)
	}
	if option.option_type != option_type {
		err := fmt.Errorf("option %s has a different type", name)
		panic(err)
	}
	return name
}
