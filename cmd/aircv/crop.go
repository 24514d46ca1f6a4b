package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"

	"github.com/lkarlslund/aircv/pkg/geometry"
	"github.com/lkarlslund/aircv/pkg/template"
)

var cropCmd = &cobra.Command{
	Use:   "crop <screen> <x> <y>",
	Short: "Suggest a template around a tapped point",
	Long:  "Detect the UI element under (x, y) and crop it out of the screenshot. The crop rectangle is printed as JSON; with --output the crop is also saved, together with a descriptor for it.",
	Args:  cobra.ExactArgs(3),
	RunE:  runCrop,
}

func init() {
	rootCmd.AddCommand(cropCmd)

	cropCmd.Flags().StringP("output", "o", "", "Write the cropped template image here")
	cropCmd.Flags().Bool("descriptor", true, "With --output, also write a .json descriptor next to the image")
}

func runCrop(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	withDescriptor, _ := cmd.Flags().GetBool("descriptor")

	x, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("y: %w", err)
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

	tap := geometry.Pt(x, y)
	crop, rect, err := s.SmartCrop(screen, tap)
	if err != nil {
		return err
	}
	defer crop.Close()

	if output != "" {
		if !gocv.IMWrite(output, crop) {
			return fmt.Errorf("could not write %s", output)
		}
		if withDescriptor {
			d := template.NewDescriptor(output, screen.Cols(), screen.Rows(), rect)
			if err := template.WriteDescriptor(template.SidecarPath(output), d); err != nil {
				return err
			}
		}
	}
	return printJSON(struct {
		Rect geometry.Rect `json:"rect"`
	}{rect})
}
