// Package template loads the images a script looks for together with the
// metadata recorded alongside them.
//
// A template image "button.png" may have a sidecar "button.json" holding a
// Descriptor. The field names are shared with existing recorded scripts and
// must not change.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"gocv.io/x/gocv"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lkarlslund/aircv/internal/frame"
	"github.com/lkarlslund/aircv/pkg/geometry"
)

var ErrInvalidTemplate = errors.New("invalid template")

// Descriptor is the recorded metadata of a template.
type Descriptor struct {
	Filename   string              `json:"filename"`
	TargetPos  TargetPos           `json:"target_pos"`
	RecordPos  *geometry.PointF    `json:"record_pos,omitempty"`
	Resolution geometry.Resolution `json:"resolution"`
	Ignore     []geometry.Rect     `json:"ignore,omitempty"`
	Focus      []geometry.Rect     `json:"focus,omitempty"`
	Threshold  *float64            `json:"threshold,omitempty"`
	RGB        bool                `json:"rgb"`
	// FindInside limits the search to this rectangle of the screen.
	FindInside *geometry.Rect `json:"find_inside,omitempty"`
}

// Validate checks the descriptor against an image of w*h pixels.
func (d Descriptor) Validate(w, h int) error {
	if w <= 0 || h <= 0 {
		return invalid(d.Filename, "image has no pixels")
	}
	if !d.TargetPos.Valid() {
		return invalid(d.Filename, fmt.Sprintf("target_pos %d out of range", d.TargetPos))
	}
	if d.Threshold != nil && (*d.Threshold < 0 || *d.Threshold > 1) {
		return invalid(d.Filename, fmt.Sprintf("threshold %v outside [0,1]", *d.Threshold))
	}
	if d.Resolution.Width < 0 || d.Resolution.Height < 0 {
		return invalid(d.Filename, fmt.Sprintf("negative resolution %v", d.Resolution))
	}
	canvas := geometry.R(0, 0, w, h)
	for _, set := range []struct {
		name  string
		rects []geometry.Rect
	}{{"ignore", d.Ignore}, {"focus", d.Focus}} {
		for _, r := range set.rects {
			if r.Empty() {
				return invalid(d.Filename, fmt.Sprintf("%s rect %v is empty or inverted", set.name, r))
			}
			if r.Intersect(canvas).Empty() {
				return invalid(d.Filename, fmt.Sprintf("%s rect %v lies outside the %dx%d image", set.name, r, w, h))
			}
		}
	}
	if d.FindInside != nil && d.FindInside.Empty() {
		return invalid(d.Filename, fmt.Sprintf("find_inside %v is empty or inverted", *d.FindInside))
	}
	return nil
}

func invalid(name, reason string) error {
	return fmt.Errorf("%s: %s: %w", name, reason, ErrInvalidTemplate)
}

// Template is an image to look for plus its descriptor. It is never changed
// after construction and may be matched from several goroutines at once.
type Template struct {
	Descriptor
	Name  string
	Image gocv.Mat
}

// New validates d against img and takes ownership of img.
func New(name string, img gocv.Mat, d Descriptor) (*Template, error) {
	w, h := frame.Size(img)
	if err := d.Validate(w, h); err != nil {
		return nil, err
	}
	return &Template{Descriptor: d, Name: name, Image: img}, nil
}

// ThresholdOr returns the template's own threshold, or def when it has none.
func (t *Template) ThresholdOr(def float64) float64 {
	if t.Threshold != nil {
		return *t.Threshold
	}
	return def
}

func (t *Template) Close() error {
	return t.Image.Close()
}

// Load reads a template. path may name the image, in which case a sidecar
// descriptor next to it is optional, or a .json descriptor whose filename is
// resolved relative to it.
func Load(path string) (*Template, error) {
	var d Descriptor
	imagePath := path
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var err error
		d, err = ReadDescriptor(path)
		if err != nil {
			return nil, err
		}
		if d.Filename == "" {
			return nil, invalid(path, "descriptor has no filename")
		}
		imagePath = d.Filename
		if !filepath.IsAbs(imagePath) {
			imagePath = filepath.Join(filepath.Dir(path), imagePath)
		}
	} else {
		sd, err := ReadDescriptor(SidecarPath(path))
		switch {
		case err == nil:
			d = sd
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
		if d.Filename == "" {
			d.Filename = filepath.Base(path)
		}
	}

	img, err := ReadImage(imagePath)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(imagePath), filepath.Ext(imagePath))
	t, err := New(name, img, d)
	if err != nil {
		img.Close()
		return nil, err
	}
	log.Debug().Str("template", name).Int("width", img.Cols()).Int("height", img.Rows()).Stringer("resolution", d.Resolution).Msg("loaded template")
	return t, nil
}

// LoadDir loads every image in dir that has a supported extension, sorted by
// name. Templates loaded before an error are closed.
func LoadDir(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []*Template
	for _, e := range entries {
		if e.IsDir() || !imageExt(e.Name()) {
			continue
		}
		t, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			for _, done := range out {
				done.Close()
			}
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func imageExt(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return true
	}
	return false
}

// SidecarPath returns where the descriptor of the image at path lives.
func SidecarPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
}

// NewDescriptor describes a template cropped out of a screen of w*h pixels
// at rect. The record position is the crop's center, normalized by the
// screen width on both axes so it can be predicted on other resolutions.
func NewDescriptor(imagePath string, w, h int, rect geometry.Rect) Descriptor {
	x, y, rw, rh := rect.XYWH()
	cx, cy := float64(x)+float64(rw)/2, float64(y)+float64(rh)/2
	return Descriptor{
		Filename:   filepath.Base(imagePath),
		TargetPos:  Center,
		RecordPos:  &geometry.PointF{X: (cx - float64(w)/2) / float64(w), Y: (cy - float64(h)/2) / float64(w)},
		Resolution: geometry.Res(w, h),
	}
}

// ReadDescriptor decodes a descriptor file.
func ReadDescriptor(path string) (Descriptor, error) {
	var d Descriptor
	raw, err := os.ReadFile(path)
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(raw, &d); err != nil {
		return d, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// WriteDescriptor stores d as indented JSON.
func WriteDescriptor(path string, d Descriptor) error {
	raw, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// ReadImage decodes any registered image format into a BGR Mat.
func ReadImage(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("%s: %w", path, err)
	}
	return frame.FromImage(img)
}
