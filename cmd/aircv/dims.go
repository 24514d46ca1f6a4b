package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lkarlslund/aircv/internal/resize"
)

var dimsCmd = &cobra.Command{
	Use:   "dims <width> <height> <template WxH> <live WxH>",
	Short: "Print the size a template gets on another resolution",
	Args:  cobra.ExactArgs(4),
	RunE:  runDims,
}

func init() {
	rootCmd.AddCommand(dimsCmd)
}

func runDims(cmd *cobra.Command, args []string) error {
	w, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("width: %w", err)
	}
	h, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("height: %w", err)
	}
	templateRes, err := parseResolution(args[2])
	if err != nil {
		return err
	}
	liveRes, err := parseResolution(args[3])
	if err != nil {
		return err
	}
	s, err := resize.ByName(cfg.ResizeStrategy)
	if err != nil {
		return err
	}
	nw, nh := resize.Dimensions(s, w, h, templateRes, liveRes, cfg.DesignResolution)
	return printJSON(map[string]int{"width": nw, "height": nh})
}
