package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"tempobot/internal/app"
	"tempobot/internal/config"
	logx "tempobot/pkg/logx"
)

var version = "dev"

const stopTimeout = 15 * time.Second

type CLI struct {
	Config  string   `short:"c" help:"Configuration file (YAML or JSON). Optional." type:"path"`
	EnvFile []string `name:"env-file" help:"dotenv files loaded before reading the environment." default:".env"`

	EnableMQTT      bool   `name:"enable-mqtt" help:"Publish tomorrow's colour over MQTT." default:"true" negatable:""`
	EnableTelegram  bool   `name:"enable-telegram" help:"Send the announcement to Telegram." default:"true" negatable:""`
	LoopTimeMin     int    `short:"l" name:"loop-time-min" help:"Minutes between two polls (120 when neither this nor poll.schedule is set)."`
	PollHistoryFile string `short:"p" name:"poll-history-file" help:"Ledger file for the file driver (default poll_history.txt)."`
	RunOnStart      bool   `name:"run-on-start" help:"Poll once immediately instead of waiting one interval."`
	LogLevel        string `name:"log-level" help:"trace, debug, info, warn or error."`

	Version kong.VersionFlag `name:"version" help:"Show version and exit."`

	Run   RunCmd   `cmd:"" default:"withargs" help:"Poll the Tempo feed and announce tomorrow's colour (default)."`
	Check CheckCmd `cmd:"" help:"Fetch the feed once and print what would be announced, without notifying."`
}

func (c *CLI) overrides() config.Overrides {
	return config.Overrides{
		EnableTelegram:  c.EnableTelegram,
		EnableMQTT:      c.EnableMQTT,
		LoopTimeMin:     c.LoopTimeMin,
		PollHistoryFile: c.PollHistoryFile,
		RunOnStart:      c.RunOnStart,
		LogLevel:        c.LogLevel,
	}
}

func (c *CLI) load(boot logx.Logger, ov config.Overrides) (*config.Config, error) {
	if err := config.LoadDotEnv(c.EnvFile...); err != nil {
		return nil, err
	}
	m := config.NewConfigManager(c.Config)
	m.SetLogger(boot.With(logx.String("comp", "config")))
	return m.Load(ov)
}

type RunCmd struct{}

func (r *RunCmd) Run(cli *CLI, boot logx.Logger) error {
	cfg, err := cli.load(boot, cli.overrides())
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		_ = a.Stop(context.Background())
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	sctx, scancel := context.WithTimeout(context.Background(), stopTimeout)
	defer scancel()
	if err := a.Stop(sctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

type CheckCmd struct{}

func (c *CheckCmd) Run(cli *CLI, boot logx.Logger) error {
	// Channels are never contacted here, so their credentials are not required.
	ov := cli.overrides()
	ov.EnableTelegram, ov.EnableMQTT = false, false
	cfg, err := cli.load(boot, ov)
	if err != nil {
		return err
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return app.Check(ctx, cfg, os.Stdout, time.Now())
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("tempobot"),
		kong.Description("Announces tomorrow's EDF Tempo colour on Telegram and MQTT."),
		kong.UsageOnError(),
		kong.Vars{"version": version},
	)

	level := cli.LogLevel
	if level == "" {
		level = "info"
	}
	boot := logx.NewConsole(level).With(logx.String("comp", "main"))

	if err := kctx.Run(&cli, boot); err != nil {
		boot.Error("fatal", logx.Err(err))
		os.Exit(1)
	}
}
