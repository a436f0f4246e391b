// Package calibration holds the fixed screenshot layouts (region templates)
// and the filename to entity table.
package calibration

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"stattrack/pkg/ocr"
)

// Built-in template names.
const (
	Basic    = "basic"
	Extended = "extended"
)

// Field names shared by the templates and the sinks.
const (
	FieldActivity   = "activity"
	FieldInfluence  = "influence"
	FieldMilitary   = "military"
	FieldMilitaryLv = "military_lv"
	FieldTrade      = "trade"
	FieldTradeLv    = "trade_lv"
	FieldTech       = "tech"
	FieldTechLv     = "tech_lv"
	FieldCulture    = "culture"
	FieldCultureLv  = "culture_lv"
)

// ErrUnknownTemplate is returned for a template name with no built-in.
var ErrUnknownTemplate = errors.New("unknown template")

// Template is one calibrated screenshot layout.
type Template struct {
	Name       string       `yaml:"name"`
	Threshold  int          `yaml:"threshold"`
	MaxChannel bool         `yaml:"max_channel"`
	Upscale    int          `yaml:"upscale"`
	Regions    []ocr.Region `yaml:"regions"`
}

// Fields returns the region names in template order.
func (t Template) Fields() []string {
	out := make([]string, len(t.Regions))
	for i, r := range t.Regions {
		out[i] = r.Name
	}
	return out
}

// PreprocessOptions converts the template's binarization settings.
func (t Template) PreprocessOptions() ocr.PreprocessOptions {
	return ocr.PreprocessOptions{Threshold: uint8(t.Threshold), MaxChannel: t.MaxChannel}
}

// Validate checks that the template can be applied. It cannot tell whether
// the rectangles actually line up with the numbers on screen.
func (t Template) Validate() error {
	if len(t.Regions) == 0 {
		return fmt.Errorf("template %q has no regions", t.Name)
	}
	if t.Threshold < 0 || t.Threshold > 255 {
		return fmt.Errorf("template %q: threshold %d out of range 0-255", t.Name, t.Threshold)
	}
	if t.Upscale < 0 {
		return fmt.Errorf("template %q: negative upscale", t.Name)
	}
	seen := make(map[string]bool, len(t.Regions))
	for _, r := range t.Regions {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("template %q: %w", t.Name, err)
		}
		if seen[r.Name] {
			return fmt.Errorf("template %q: duplicate region %s", t.Name, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

func box(name string, left, top, right, bottom int) ocr.Region {
	return ocr.Region{Name: name, X: left, Y: top, Width: right - left, Height: bottom - top}
}

func rect(name string, x, y, w, h int) ocr.Region {
	return ocr.Region{Name: name, X: x, Y: y, Width: w, Height: h}
}

// Builtin returns a copy of a built-in template.
func Builtin(name string) (Template, error) {
	switch name {
	case Basic:
		return Template{
			Name:      Basic,
			Threshold: ocr.DefaultThreshold,
			Upscale:   1,
			Regions: []ocr.Region{
				box(FieldMilitary, 480, 159, 581, 200),
				box(FieldTrade, 487, 225, 576, 264),
				box(FieldTech, 486, 286, 576, 325),
				box(FieldCulture, 489, 349, 579, 386),
			},
		}, nil
	case Extended:
		return Template{
			Name:       Extended,
			Threshold:  150,
			MaxChannel: true,
			Upscale:    3,
			Regions: []ocr.Region{
				rect(FieldActivity, 483, 100, 107, 36),
				rect(FieldInfluence, 85, 288, 52, 50),
				rect(FieldMilitary, 485, 161, 106, 46),
				rect(FieldMilitaryLv, 685, 161, 48, 46),
				rect(FieldTrade, 485, 224, 106, 46),
				rect(FieldTradeLv, 685, 224, 48, 46),
				rect(FieldTech, 485, 287, 106, 46),
				rect(FieldTechLv, 685, 287, 48, 46),
				rect(FieldCulture, 485, 349, 106, 46),
				rect(FieldCultureLv, 685, 349, 48, 46),
			},
		}, nil
	default:
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
}

// DefaultEntities returns the screenshot filename to entity table.
func DefaultEntities() map[string]string {
	return map[string]string{
		"CountryState_Yiguo.png":   "夷國",
		"CountryState_Changuo.png": "闡國",
		"CountryState_Yumin.png":   "羽民國",
		"CountryState_Xiaguo.png":  "夏國",
		"CountryState_Ying.png":    "瀛國",
		"CountryState_Yan.png":     "奄國",
		"CountryState_Shang.png":   "商國",
		"CountryState_GuiFang.png": "鬼方國",
	}
}

// Calibration is the effective layout plus entity table for a run.
type Calibration struct {
	Template Template
	Entities map[string]string
}

type fileFormat struct {
	// Base names a built-in template the file overrides.
	Base       string            `yaml:"base"`
	Threshold  *int              `yaml:"threshold"`
	MaxChannel *bool             `yaml:"max_channel"`
	Upscale    *int              `yaml:"upscale"`
	Regions    []ocr.Region      `yaml:"regions"`
	Entities   map[string]string `yaml:"entities"`
}

// Load returns the built-in template named name, overridden by the YAML file
// at path when path is non-empty. Regions in the file replace the template's
// regions wholesale; entities replace the default table.
func Load(path, name string) (Calibration, error) {
	if path == "" {
		tpl, err := Builtin(name)
		if err != nil {
			return Calibration{}, err
		}
		return Calibration{Template: tpl, Entities: DefaultEntities()}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("read calibration %s: %w", path, err)
	}
	return Parse(data, name)
}

// Parse applies YAML calibration data on top of a built-in template.
func Parse(data []byte, name string) (Calibration, error) {
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Calibration{}, fmt.Errorf("parse calibration: %w", err)
	}
	if f.Base != "" {
		name = f.Base
	}
	tpl, err := Builtin(name)
	if err != nil {
		return Calibration{}, err
	}
	if f.Threshold != nil {
		tpl.Threshold = *f.Threshold
	}
	if f.MaxChannel != nil {
		tpl.MaxChannel = *f.MaxChannel
	}
	if f.Upscale != nil {
		tpl.Upscale = *f.Upscale
	}
	if len(f.Regions) > 0 {
		tpl.Regions = f.Regions
	}
	if err := tpl.Validate(); err != nil {
		return Calibration{}, err
	}
	entities := DefaultEntities()
	if len(f.Entities) > 0 {
		entities = f.Entities
	}
	return Calibration{Template: tpl, Entities: entities}, nil
}
