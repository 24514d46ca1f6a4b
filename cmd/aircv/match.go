package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/debugdraw"
	"github.com/lkarlslund/aircv/pkg/engine"
	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/template"
)

var matchCmd = &cobra.Command{
	Use:   "match <screen> <template>...",
	Short: "Find templates in a screenshot",
	Long:  "Find each template in the screenshot and print the results as JSON. A template is an image, optionally with a sidecar .json descriptor, or a descriptor naming its image.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().Bool("all", false, "Return every occurrence instead of the best one")
	matchCmd.Flags().String("annotate", "", "Write an annotated copy of the screenshot to this file")
	matchCmd.Flags().String("live", "", "Resolution of the device the screenshot came from, as WxH (default: the screenshot's size)")
	matchCmd.Flags().StringSlice("strategy", nil, "Override the configured strategies (tplpre, tpl, mstpl)")
}

type matchOutput struct {
	Template string          `json:"template"`
	Found    bool            `json:"found"`
	Target   *geometry.Point `json:"target,omitempty"`
	Results  []engine.Result `json:"results"`
	Error    string          `json:"error,omitempty"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	annotate, _ := cmd.Flags().GetString("annotate")
	liveStr, _ := cmd.Flags().GetString("live")
	strategies, _ := cmd.Flags().GetStringSlice("strategy")

	var live geometry.Resolution
	if liveStr != "" {
		var err error
		if live, err = parseResolution(liveStr); err != nil {
			return err
		}
	}
	if len(strategies) > 0 {
		cfg.Strategies = strategies
	}
	s, err := service()
	if err != nil {
		return err
	}

	screen, err := template.ReadImage(args[0])
	if err != nil {
		return fmt.Errorf("screen: %w", err)
	}
	defer screen.Close()

	var canvas gocv.Mat
	if annotate != "" {
		canvas = screen.Clone()
		defer canvas.Close()
	}

	var outputs []matchOutput
	for _, path := range args[1:] {
		out := matchOutput{Template: path, Results: []engine.Result{}}
		t, err := template.Load(path)
		if err != nil {
			log.Warn().Err(err).Str("template", path).Msg("could not load template")
			out.Error = err.Error()
			outputs = append(outputs, out)
			continue
		}
		if all {
			results, err := s.MatchAll(engine.Input{Screen: screen, Template: t, Live: live})
			if err != nil {
				out.Error = err.Error()
			}
			out.Results = append(out.Results, results...)
		} else {
			res, err := s.MatchWith(engine.Input{Screen: screen, Template: t, Live: live}, s.Strategies()...)
			if err != nil {
				out.Error = err.Error()
			} else if res != nil {
				p := t.TargetPos.Point(*res)
				out.Target = &p
				out.Results = append(out.Results, *res)
			}
		}
		out.Found = len(out.Results) > 0
		log.Info().Str("template", t.Name).Bool("found", out.Found).Int("results", len(out.Results)).Msg("matched")

		if annotate != "" {
			for _, r := range out.Results {
				debugdraw.Result(&canvas, r, t.Name, debugdraw.Found)
			}
			if out.Target != nil {
				debugdraw.Point(&canvas, *out.Target, debugdraw.Target)
			}
		}
		t.Close()
		outputs = append(outputs, out)
	}

	if annotate != "" && !gocv.IMWrite(annotate, canvas) {
		return fmt.Errorf("could not write %s", annotate)
	}
	return printJSON(outputs)
}

func parseResolution(s string) (geometry.Resolution, error) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil || w <= 0 || h <= 0 {
		return geometry.Resolution{}, fmt.Errorf("invalid resolution %q, want WxH", s)
	}
	return geometry.Res(w, h), nil
}
