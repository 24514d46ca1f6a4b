//go:build windows

// Command emumatch watches an Android emulator window, finds a directory of
// templates on every captured frame and optionally taps the ones it finds.
package main

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/config"
	"github.com/lkarlslund/aircv/pkg/debugdraw"
	"github.com/lkarlslund/aircv/pkg/engine"
	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/template"
)

type result struct {
	name   string
	target *geometry.Point
	match  *engine.Result
	err    error
}

var rootCmd = &cobra.Command{
	Use:          "emumatch",
	Short:        "Find templates on a running Android emulator",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().String("emulator", "bluestacks", "Emulator to attach to ("+emulatorNames()+")")
	rootCmd.Flags().String("templates", "templates", "Directory of template images and descriptors")
	rootCmd.Flags().String("config", "aircv.json", "Matching configuration")
	rootCmd.Flags().StringSlice("click", nil, "Tap these templates whenever they are found")
	rootCmd.Flags().Bool("sendinput", false, "Tap with the real cursor instead of window messages")
	rootCmd.Flags().Bool("window", false, "Show a debug window with the latest matches")
	rootCmd.Flags().Bool("debug", false, "Debug logging")
	rootCmd.Flags().Duration("interval", time.Second, "Time between match passes")
}

func run(cmd *cobra.Command, args []string) error {
	emulatorName, _ := cmd.Flags().GetString("emulator")
	templateDir, _ := cmd.Flags().GetString("templates")
	configPath, _ := cmd.Flags().GetString("config")
	clickNames, _ := cmd.Flags().GetStringSlice("click")
	sendInput, _ := cmd.Flags().GetBool("sendinput")
	showWindow, _ := cmd.Flags().GetBool("window")
	debug, _ := cmd.Flags().GetBool("debug")
	interval, _ := cmd.Flags().GetDuration("interval")

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	s, err := engine.New(cfg)
	if err != nil {
		return err
	}

	templates, err := template.LoadDir(templateDir)
	if err != nil {
		return err
	}
	defer func() {
		for _, t := range templates {
			t.Close()
		}
	}()
	log.Info().Int("count", len(templates)).Str("dir", templateDir).Msg("templates loaded")

	clickable := map[string]bool{}
	for _, n := range clickNames {
		clickable[n] = true
	}

	e, err := openEmulator(emulatorName)
	if err != nil {
		return err
	}

	var (
		lock       sync.Mutex
		lastimage  = gocv.NewMat()
		lastframe  time.Time
		lastresult []result
		running    atomic.Bool
	)
	running.Store(true)
	defer func() {
		lock.Lock()
		lastimage.Close()
		lock.Unlock()
	}()

	// screen capture, at most 50Hz
	go func() {
		for running.Load() {
			if time.Since(lastframe) < time.Millisecond*20 {
				time.Sleep(time.Millisecond)
				continue
			}
			capture, err := e.Capture()
			if err != nil {
				log.Error().Err(err).Msg("capture failed, stopping")
				running.Store(false)
				continue
			}
			lock.Lock()
			old := lastimage
			lastimage = capture
			lastframe = time.Now()
			lock.Unlock()
			old.Close()
		}
	}()

	// matching, one goroutine per template
	go func() {
		var lastmatched time.Time
		for running.Load() {
			lock.Lock()
			if !lastframe.After(lastmatched) || lastimage.Empty() {
				lock.Unlock()
				time.Sleep(time.Millisecond * 10)
				continue
			}
			screen := lastimage.Clone()
			lastmatched = lastframe
			lock.Unlock()

			results := make([]result, len(templates))
			var wg sync.WaitGroup
			wg.Add(len(templates))
			for i, t := range templates {
				go func(i int, t *template.Template) {
					defer wg.Done()
					p, m, err := s.Target(screen, t)
					results[i] = result{name: t.Name, target: p, match: m, err: err}
				}(i, t)
			}
			wg.Wait()
			screen.Close()

			for _, r := range results {
				switch {
				case r.err != nil:
					log.Warn().Err(r.err).Str("template", r.name).Msg("match failed")
				case r.match != nil && clickable[r.name]:
					log.Info().Str("template", r.name).Stringer("at", r.target).Float64("confidence", r.match.Confidence).Msg("tapping")
					if sendInput {
						e.SystemClick(*r.target)
					} else {
						e.Click(*r.target)
					}
				case r.match != nil:
					log.Debug().Str("template", r.name).Stringer("result", r.match).Msg("found")
				}
			}

			lock.Lock()
			lastresult = results
			lock.Unlock()
			time.Sleep(interval)
		}
	}()

	if !showWindow {
		for running.Load() {
			time.Sleep(time.Millisecond * 100)
		}
		return nil
	}

	window := debugdraw.NewWindow("Debug Window")
	defer window.Close()
	var lastshown time.Time
	for running.Load() {
		lock.Lock()
		if lastframe.Equal(lastshown) || lastimage.Empty() {
			lock.Unlock()
			time.Sleep(time.Millisecond * 25)
			continue
		}
		lastshown = lastframe
		debugmat := lastimage.Clone()
		results := append([]result(nil), lastresult...)
		lock.Unlock()

		for _, r := range results {
			if r.match == nil {
				continue
			}
			debugdraw.Result(&debugmat, *r.match, r.name, debugdraw.Found)
			debugdraw.Point(&debugmat, *r.target, debugdraw.Target)
		}
		if window.Show(debugmat) {
			running.Store(false)
		}
		debugmat.Close()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("emumatch failed")
		os.Exit(1)
	}
}
