package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/ItsNotGoodName/dim/internal/app"
	"github.com/ItsNotGoodName/dim/internal/build"
	"github.com/ItsNotGoodName/dim/internal/config"
	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/joho/godotenv"
	"github.com/k0kubun/pp"
	"github.com/phsym/console-slog"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

type Options struct {
	Debug          bool   `doc:"enable debug"`
	Config         string `doc:"use config at path" short:"c"`
	GenCompletions string `doc:"generate completions at given path"`
	PrintConfig    bool   `doc:"print the resolved config and exit"`
}

func main() {
	godotenv.Load()

	exitCode := app.ExitTimeout

	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, options *Options) {
		if options.Debug {
			InitLogger(slog.LevelDebug)
		} else {
			InitLogger(slog.LevelInfo)
		}

		if options.GenCompletions != "" {
			hooks.OnStart(func() {
				if err := GenerateCompletions(cli.Root(), options.GenCompletions); err != nil {
					slog.Error("Failed to generate completions", "error", err)
					exitCode = app.ExitFailure
				}
			})
			return
		}

		cfg, err := loadConfig(options.Config, cli.Root().Flags())
		if err != nil {
			hooks.OnStart(func() {
				slog.Error("Invalid configuration", "error", err)
				exitCode = app.ExitFailure
			})
			return
		}
		settings := cfg.Settings()

		if options.PrintConfig {
			hooks.OnStart(func() {
				pp.ColoringEnabled = term.IsTerminal(int(os.Stdout.Fd()))
				pp.Println(settings)
			})
			return
		}

		OnServe(hooks, func(ctx context.Context) error {
			return app.Run(ctx, settings)
		}, func(err error) {
			exitCode = app.ExitCode(err)
			if exitCode == app.ExitFailure && !errors.Is(err, context.Canceled) {
				slog.Error("Failed to dim", "error", err)
			}
		})
	})

	flags := cli.Root().Flags()
	flags.Float64P("alpha", "a", config.DefaultAlpha, "0.0 is transparent, 1.0 is opaque, when opaque the cursor is hidden")
	flags.Float64P("fade", "f", config.DefaultFade, "fade-in animation duration in seconds")
	flags.IntP("duration", "d", config.DefaultDuration, "duration in seconds, 0 is infinite")
	flags.BoolP("passthrough", "p", false, "ignore input, passing it to lower surfaces (you probably want -d 0 with this)")

	cli.Root().Use = "dim"
	cli.Root().Short = "Dim the screen until there is input"
	cli.Root().Version = build.Current.String()

	cli.Run()

	os.Exit(exitCode)
}

// loadConfig merges the config file with the flags the user set and
// validates the result.
func loadConfig(path string, flags *pflag.FlagSet) (config.Config, error) {
	var cfg config.Config
	if path = config.FilePath(path); path != "" {
		var err error
		cfg, err = config.Load(config.NewYAML(path))
		if err != nil {
			return config.Config{}, err
		}
	}

	var cliCfg config.Config
	if flags.Changed("alpha") {
		alpha, _ := flags.GetFloat64("alpha")
		cliCfg.Alpha = &alpha
	}
	if flags.Changed("fade") {
		fade, _ := flags.GetFloat64("fade")
		cliCfg.Fade = &fade
	}
	if flags.Changed("duration") {
		duration, _ := flags.GetInt("duration")
		cliCfg.Duration = &duration
	}
	if flags.Changed("passthrough") {
		passthrough, _ := flags.GetBool("passthrough")
		cliCfg.Passthrough = &passthrough
	}

	cfg = cfg.Merge(cliCfg)
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}

	return cfg, nil
}

func InitLogger(level slog.Level) {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level:   level,
		NoColor: !term.IsTerminal(int(os.Stderr.Fd())),
	})))
}

func OnServe(hooks humacli.Hooks, serveFn func(ctx context.Context) error, doneFn func(err error)) {
	stopC := make(chan struct{})
	hooks.OnStart(func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errC := make(chan error, 1)

		go func() { errC <- serveFn(ctx) }()

		select {
		case <-stopC:
			cancel()
		case err := <-errC:
			doneFn(err)
			return
		}

		doneFn(<-errC)
		<-stopC
	})
	hooks.OnStop(func() {
		stopC <- struct{}{}
		stopC <- struct{}{}
	})
}
