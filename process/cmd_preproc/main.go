package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"

	"stattrack/pkg/config"
	"stattrack/pkg/ocr"
)

// Writes the binarized screenshot with the template's regions outlined, for
// checking calibration by eye.
func main() {
	envFile := flag.String("env", ".env", "dotenv file to load")
	in := flag.String("in", "", "screenshot to preprocess")
	out := flag.String("out", "", "output path (default binary_<name>.png next to the input)")
	outline := flag.Bool("outline", true, "draw region rectangles")
	flag.Parse()
	if *in == "" {
		fmt.Fprintln(os.Stderr, "usage: cmd_preproc -in CountryState_Yiguo.png")
		os.Exit(2)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cal, err := cfg.Calibration()
	if err != nil {
		fmt.Fprintf(os.Stderr, "calibration: %v\n", err)
		os.Exit(2)
	}

	raw, err := os.ReadFile(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read: %v\n", err)
		os.Exit(1)
	}
	bin, err := ocr.Preprocess(raw, cal.Template.PreprocessOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "preprocess: %v\n", err)
		os.Exit(1)
	}

	dst := imaging.Clone(bin)
	if *outline {
		red := color.NRGBA{R: 255, A: 255}
		for _, r := range cal.Template.Regions {
			drawRect(dst, r.Rect(), red)
		}
	}

	path := *out
	if path == "" {
		base := filepath.Base(*in)
		path = filepath.Join(filepath.Dir(*in), "binary_"+base[:len(base)-len(filepath.Ext(base))]+".png")
	}
	if err := imaging.Save(dst, path); err != nil {
		fmt.Fprintf(os.Stderr, "save: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func drawRect(img *image.NRGBA, r image.Rectangle, c color.NRGBA) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for x := r.Min.X; x < r.Max.X; x++ {
		img.SetNRGBA(x, r.Min.Y, c)
		img.SetNRGBA(x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		img.SetNRGBA(r.Min.X, y, c)
		img.SetNRGBA(r.Max.X-1, y, c)
	}
}
