package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/texlate/texlate/pkg/config/definition"
)

// bindRegistryFlags declares a persistent flag for every configuration field
// that names one.
func bindRegistryFlags(flags *pflag.FlagSet) {
	for _, field := range definition.CreateRegistry().Fields() {
		if field.CLIFlag == "" {
			continue
		}
		switch def := field.Default.(type) {
		case int:
			flags.IntP(field.CLIFlag, field.Shorthand, def, field.Help)
		case bool:
			flags.BoolP(field.CLIFlag, field.Shorthand, def, field.Help)
		case time.Duration:
			flags.DurationP(field.CLIFlag, field.Shorthand, def, field.Help)
		case string:
			flags.StringP(field.CLIFlag, field.Shorthand, def, field.Help)
		default:
			flags.StringP(field.CLIFlag, field.Shorthand, fmt.Sprint(def), field.Help)
		}
	}
}

// extractCLIFlags collects the flags the user changed, keyed by flag name.
func extractCLIFlags(cmd *cobra.Command, flags map[string]any) {
	mapping := definition.CreateRegistry().GetCLIFlagMapping()
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if _, ok := mapping[f.Name]; !ok {
			return
		}
		var (
			value any
			err   error
		)
		switch f.Value.Type() {
		case "int":
			value, err = cmd.Flags().GetInt(f.Name)
		case "bool":
			value, err = cmd.Flags().GetBool(f.Name)
		case "duration":
			value, err = cmd.Flags().GetDuration(f.Name)
		default:
			value = f.Value.String()
		}
		if err == nil {
			flags[f.Name] = value
		}
	})
}

// loadEnvFile loads variables from the --env-file path. A missing file is
// not an error.
func loadEnvFile(cmd *cobra.Command) (string, error) {
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return "", fmt.Errorf("failed to get env-file flag: %w", err)
	}
	if envFile == "" {
		return "", nil
	}
	absPath, err := filepath.Abs(filepath.Clean(envFile))
	if err != nil {
		return "", fmt.Errorf("failed to resolve env file path: %w", err)
	}
	if err := godotenv.Load(absPath); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to load env file %s: %w", absPath, err)
		}
	}
	return absPath, nil
}
