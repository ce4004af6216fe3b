package options

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"k8s.io/klog/v2"
	"sigs.k8s.io/yaml"
)

// Optioner is any options struct carrying the shared base options.
type Optioner interface {
	AddFlags(*pflag.FlagSet)
	GetBaseOptions() *BaseOptions
}

// BaseOptions are the flags every invocation of this tool shares: an
// optional YAML config file and the logging configuration.
type BaseOptions struct {
	ConfigFile string `json:"-"`
	Logging    LoggingConfiguration
}

func NewDefaultBaseOptions() BaseOptions {
	return BaseOptions{
		Logging: NewDefaultLoggingConfiguration(),
	}
}

func (bo *BaseOptions) GetBaseOptions() *BaseOptions {
	return bo
}

func (bo *BaseOptions) AddBaseFlags(cmd *cobra.Command, fs *pflag.FlagSet) {
	bo.addConfigFile(fs)
	bo.Logging.BindLoggingFlags(fs)
	addHelpAndUsage(cmd, fs)
	addDefaultConfig(fs)
}

func (bo *BaseOptions) addConfigFile(fs *pflag.FlagSet) {
	fs.StringVarP(&bo.ConfigFile, "config", "c", bo.ConfigFile, "Load initial configuration from this YAML file. Omit to use built-in defaults. Command-line flags override values from this file.")
}

func (bo *BaseOptions) ValidateAndApply() error {
	return bo.Logging.ValidateAndApply()
}

// ParseAndApplyConfigFile merges the config file under the already
// parsed flags: the file is unmarshalled over the options, then the
// flags are re-parsed on top so they keep precedence.
func ParseAndApplyConfigFile(o Optioner, args []string) error {
	base := o.GetBaseOptions()
	if len(base.ConfigFile) == 0 {
		return nil
	}

	path, err := filepath.Abs(base.ConfigFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		klog.ErrorS(err, "Failed to read config file", "file", path)
		return err
	}
	if err := yaml.Unmarshal(data, o); err != nil {
		klog.ErrorS(err, "Failed to unmarshal config file", "file", path)
		return err
	}

	fs := pflag.NewFlagSet("", pflag.ExitOnError)
	o.AddFlags(fs)
	base.addConfigFile(fs)
	base.Logging.BindLoggingFlags(fs)
	return fs.Parse(args)
}

func PrintHelpAndExitIfRequested(cmd *cobra.Command, fs *pflag.FlagSet) {
	if help, _ := fs.GetBool("help"); help {
		_ = cmd.Help()
		os.Exit(0)
	}
}

func addDefaultConfig(fs *pflag.FlagSet) {
	fs.Bool("default-config", false, "Print the default configuration as YAML and exit, as a starting point for a config file.")
}

func PrintDefaultConfigAndExitIfRequested(config interface{}, fs *pflag.FlagSet) {
	requested, _ := fs.GetBool("default-config")
	if !requested {
		return
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		klog.ErrorS(err, "Failed to marshal default config to yaml")
		os.Exit(1)
	}
	fmt.Printf("# Default configuration, all fields set to their built-in values.\n\n%s\n", string(data))
	os.Exit(0)
}

func addHelpAndUsage(cmd *cobra.Command, fs *pflag.FlagSet) {
	fs.BoolP("help", "h", false, fmt.Sprintf("help for %s", cmd.Name()))

	// cobra's default usage/help functions pollute the flagset with
	// global flags, so both are pinned to the clean flagset
	const usageFmt = "Usage:\n  %s\n\nFlags:\n%s"
	cmd.SetUsageFunc(func(cmd *cobra.Command) error {
		_, _ = fmt.Fprintf(cmd.OutOrStderr(), usageFmt, cmd.UseLine(), fs.FlagUsagesWrapped(2))
		return nil
	})
	cmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n"+usageFmt, cmd.Long, cmd.UseLine(), fs.FlagUsagesWrapped(2))
	})
}
