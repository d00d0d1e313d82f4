// Command fgplan compiles a frame graph description and prints the plan:
// execution order, culled passes, transient pool slots and memory saved by
// aliasing. The graph also executes once on the noop backend so that pass
// validation runs without a GPU.
//
// Usage:
//
//	fgplan [flags] graph.yaml|graph.toml
//
// The log level comes from FGPLAN_LOG_LEVEL (debug, info, warn, error),
// which may also be set in a .env file in the working directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/internal/desc"
	"github.com/gogpu/framegraph/internal/report"
	"github.com/joho/godotenv"
	"github.com/muesli/termenv"
)

type config struct {
	file    string
	verbose bool
	noAlias bool
	format  string
	chart   string
	disable []string
	enable  []string
	watch   bool
	profile termenv.Profile
}

func main() {
	_ = godotenv.Load()

	var cfg config
	flag.BoolVar(&cfg.verbose, "v", false, "print attachment ops and alias barriers")
	flag.BoolVar(&cfg.noAlias, "no-alias", false, "give every transient its own slot")
	flag.StringVar(&cfg.format, "format", "text", "output format: text, dot or mermaid")
	flag.StringVar(&cfg.chart, "chart", "", "write a lifetime chart PNG to this file")
	flag.Func("disable", "disable a pass by name (repeatable)", func(s string) error {
		cfg.disable = append(cfg.disable, s)
		return nil
	})
	flag.Func("enable", "enable a pass by name (repeatable)", func(s string) error {
		cfg.enable = append(cfg.enable, s)
		return nil
	})
	flag.BoolVar(&cfg.watch, "watch", false, "re-plan whenever the description changes")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: fgplan [flags] graph.yaml|graph.toml")
		flag.PrintDefaults()
		os.Exit(2)
	}
	cfg.file = flag.Arg(0)

	out := termenv.NewOutput(os.Stdout)
	cfg.profile = out.EnvColorProfile()

	level, err := parseLevel(os.Getenv("FGPLAN_LOG_LEVEL"))
	if err != nil {
		log.Fatal(err)
	}
	framegraph.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if !cfg.watch {
		if err := run(cfg, out); err != nil {
			log.Fatal(err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := watch(ctx, cfg, out); err != nil {
		log.Fatal(err)
	}
}

func parseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("FGPLAN_LOG_LEVEL: %w", err)
	}
	return l, nil
}

// run loads, compiles and executes the description once and writes the
// plan to w.
func run(cfg config, w io.Writer) error {
	g, err := desc.Load(cfg.file)
	if err != nil {
		return err
	}

	dev, err := framegraph.OpenNoopDevice()
	if err != nil {
		return err
	}
	defer dev.Close()

	fg := framegraph.New(framegraph.WithAliasing(!cfg.noAlias))
	defer fg.Release()
	built, err := g.Build(fg)
	if err != nil {
		return err
	}
	for _, name := range cfg.disable {
		if err := built.SetEnabled(name, false); err != nil {
			return err
		}
	}
	for _, name := range cfg.enable {
		if err := built.SetEnabled(name, true); err != nil {
			return err
		}
	}

	defer built.Release()
	if err := built.BindPlaceholders(dev); err != nil {
		return err
	}

	cmds, err := fg.Render(dev)
	if err != nil {
		return err
	}
	dev.Release(cmds)
	cg := fg.Compiled()

	switch strings.ToLower(cfg.format) {
	case "text":
		opts := report.DefaultOptions()
		opts.Profile = cfg.profile
		opts.Verbose = cfg.verbose
		err = report.Plan(w, cg, opts)
	case "dot":
		_, err = io.WriteString(w, cg.DOT())
	case "mermaid":
		_, err = io.WriteString(w, cg.Mermaid())
	default:
		return fmt.Errorf("unknown format %q", cfg.format)
	}
	if err != nil {
		return err
	}

	if cfg.chart != "" {
		return writeChart(cfg.chart, cg)
	}
	return nil
}

func writeChart(path string, cg *framegraph.CompiledGraph) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return report.WriteChart(f, cg)
}

// watch runs the planner, then again after every change to the
// description until ctx is done. Errors in an edited file are reported
// and the watch continues.
func watch(ctx context.Context, cfg config, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors often replace the file, so watch the directory.
	abs, err := filepath.Abs(cfg.file)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	replan := func() {
		if err := run(cfg, w); err != nil {
			framegraph.Logger().Error("plan failed", "file", cfg.file, "err", err)
		}
	}
	replan()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			fmt.Fprintf(w, "\n-- %s changed --\n", filepath.Base(abs))
			replan()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				replan()
				continue
			}
			return err
		}
	}
}
