package cmd

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/hlsforge/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

var configDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Dump the default configuration",
	Long: `Dump the default configuration values in YAML format.

Redirect the output to a file to create a configuration template:

  hlsforge config dump > config.yaml

Configuration can be set via:
  - Config file (./config.yaml, /etc/hlsforge, $HOME/.hlsforge)
  - Environment variables with the HLSFORGE_ prefix
  - Command-line flags (for some options)

Environment variables use underscores for nesting.
Example: server.port -> HLSFORGE_SERVER_PORT`,
	RunE: runConfigDump,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configDumpCmd)
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// rendering durations in human-readable form.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(typ.Field(i).Name)
		}

		switch {
		case field.Type() == reflect.TypeOf(time.Duration(0)):
			result[tag] = field.Interface().(time.Duration).String()
		case field.Kind() == reflect.Struct:
			result[tag] = toMap(field.Interface())
		default:
			result[tag] = field.Interface()
		}
	}
	return result
}

func runConfigDump(cmd *cobra.Command, args []string) error {
	v := viper.New()
	config.SetDefaults(v)

	var cfg config.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("unmarshaling defaults: %w", err)
	}

	out, err := yaml.Marshal(toMap(&cfg))
	if err != nil {
		return fmt.Errorf("marshaling configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
