package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/encryption"
)

var version = "dev"

func newLogger() zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false, TimeFormat: time.RFC3339}
	consoleWriter.TimeFormat = "[" + time.RFC3339 + "]"
	consoleWriter.PartsOrder = []string{
		zerolog.TimestampFieldName,
		zerolog.LevelFieldName,
		zerolog.CallerFieldName,
		zerolog.MessageFieldName,
	}

	logger := zerolog.New(consoleWriter).
		With().Timestamp().Logger()

	level := zerolog.InfoLevel
	envLevel, ok := os.LookupEnv("LOG_LEVEL")
	if ok {
		parsed, err := zerolog.ParseLevel(envLevel)
		if err != nil {
			logger.Warn().Err(err).Msg("could not parse environment variable LOG_LEVEL")
			return logger
		}
		level = parsed
	}

	return logger.Level(level)
}

type commandFunc func(ctx context.Context, args Command, logger zerolog.Logger) error

var commands = map[string]commandFunc{
	"daemon":               daemonCommand,
	"run <job>":            runCommand,
	"restore <run>":        restoreCommand,
	"clean":                cleanCommand,
	"job add":              jobAddCommand,
	"job list":             jobListCommand,
	"job show <id>":        jobShowCommand,
	"job update <id>":      jobUpdateCommand,
	"job remove <id>":      jobRemoveCommand,
	"provider add":         providerAddCommand,
	"provider list":        providerListCommand,
	"provider rotate <id>": providerRotateCommand,
	"provider remove <id>": providerRemoveCommand,
	"provider test <id>":   providerTestCommand,
	"provider test-config": providerTestConfigCommand,
	"provider test-all":    providerTestAllCommand,
	"history":              historyCommand,
	"settings show":        settingsShowCommand,
	"settings set":         settingsSetCommand,
}

func main() {
	args := Command{}
	cli := kong.Parse(&args,
		kong.Name("cloudbackup"),
		kong.Description("Scheduled backups to S3 compatible storage"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignals(cancel)

	logger := newLogger()
	switch cli.Command() {
	case "version":
		fmt.Println(version)
	case "keygen":
		key, err := encryption.GenerateKey()
		if err != nil {
			logger.Error().Err(err).Msg("keygen error")
			cli.Exit(1)
		}
		fmt.Println(encryption.FormatKey(key))
	default:
		run, ok := commands[cli.Command()]
		if !ok {
			panic(cli.Command())
		}
		if err := run(ctx, args, logger); err != nil {
			logger.Error().Err(err).Msgf("%s error", cli.Command())
			cli.Exit(1)
		}
	}
}

func setupSignals(onSignal func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		onSignal()
	}()
}
