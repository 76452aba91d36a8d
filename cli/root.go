package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/texlate/texlate/pkg/config"
	"github.com/texlate/texlate/pkg/logger"
)

const (
	defaultConfigFile = "texlate.yaml"
	defaultEnvFile    = ".env"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "texlate",
		Short:         "Translate LaTeX papers under a shared concurrency limit",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return SetupGlobalConfig(cmd)
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", defaultConfigFile, "Path to the configuration file")
	flags.String("env-file", defaultEnvFile, "Path to the environment variables file")
	flags.Bool("log-json", false, "Output logs in JSON format")
	flags.Bool("log-source", false, "Include source file and line in logs")
	flags.Bool("debug", false, "Enable debug mode (sets log level to debug)")
	bindRegistryFlags(flags)

	root.AddCommand(
		ServeCmd(),
		TranslateCmd(),
		SlotsCmd(),
		ConfigCmd(),
		VersionCmd(),
	)
	return root
}

// SetupGlobalConfig loads the env file and configuration, then installs the
// configuration manager and logger on the command context.
func SetupGlobalConfig(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if debug, err := cmd.Flags().GetBool("debug"); err == nil && debug {
		if err := cmd.Flags().Set("log-level", "debug"); err != nil {
			return err
		}
	}
	if _, err := loadEnvFile(cmd); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	manager := config.NewManager(ctx, config.NewService())
	if _, err := manager.Load(ctx, configSources(cmd, configFile)...); err != nil {
		return err
	}
	cfg := manager.Get()
	_, logJSON, logSource, err := logger.GetLoggerConfig(cmd)
	if err != nil {
		return err
	}
	log := logger.SetupLogger(cfg.Runtime.LogLevel, logJSON, logSource)
	ctx = config.ContextWithManager(ctx, manager)
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)
	return nil
}

// configSources lists sources by increasing precedence.
func configSources(cmd *cobra.Command, configFile string) []config.Source {
	sources := []config.Source{config.NewDefaultProvider()}
	if configFile != "" {
		sources = append(sources, config.NewYAMLProvider(configFile))
	}
	sources = append(sources, config.NewEnvProvider())
	cliFlags := make(map[string]any)
	extractCLIFlags(cmd, cliFlags)
	if len(cliFlags) > 0 {
		sources = append(sources, config.NewCLIProvider(cliFlags))
	}
	return sources
}
