package occupancy

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"go.viam.com/utils"
)

const (
	defaultRoadValue        = 0
	defaultLaneMarkingValue = 150
	defaultEgoValue         = 164
	defaultRareThreshold    = 500
)

// Palette describes how pixel values of a top-down perception frame classify
// into traversability values. Values refer to the single-channel (grayscale)
// rendition of the frame.
type Palette struct {
	// FreeValues are pixel values treated as traversable (road surface,
	// lane markings).
	FreeValues []uint8 `json:"free_values"`
	// EgoValue is the pixel value of the ego vehicle's footprint.
	EgoValue uint8 `json:"ego_value"`
	// RareThreshold is the pixel-frequency cutoff below which a value is
	// treated as a small transient actor (e.g. a pedestrian) and classified
	// occupied regardless of the palette. Strictly-below semantics: a value
	// occurring exactly RareThreshold times is classified by palette alone.
	RareThreshold int `json:"rare_threshold"`
}

// DefaultPalette returns the palette of the stock bird's-eye-view sensor.
func DefaultPalette() Palette {
	return Palette{
		FreeValues:    []uint8{defaultRoadValue, defaultLaneMarkingValue},
		EgoValue:      defaultEgoValue,
		RareThreshold: defaultRareThreshold,
	}
}

// Validate ensures all parts of the palette are valid.
func (p *Palette) Validate(path string) error {
	if len(p.FreeValues) == 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "free_values")
	}
	if p.RareThreshold < 0 {
		return utils.NewConfigValidationError(path, errors.New("rare_threshold must be non-negative"))
	}
	return nil
}

// BuildGrid classifies one perception frame into a traversability grid of the
// same dimensions. The build is stateless: the same frame always produces the
// same grid.
func BuildGrid(img image.Image, palette Palette) (*Grid, error) {
	if img == nil {
		return nil, errors.New("no perception frame")
	}
	bounds := img.Bounds()
	rows, cols := bounds.Dy(), bounds.Dx()
	if rows == 0 || cols == 0 {
		return nil, errors.Errorf("degenerate perception frame %dx%d", cols, rows)
	}

	gray := toGray(img)

	// First pass counts value frequencies for the rare-actor rule.
	var freq [256]int
	for _, v := range gray.Pix {
		freq[v]++
	}

	free := [256]bool{}
	for _, v := range palette.FreeValues {
		free[v] = true
	}

	grid := NewGrid(rows, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			v := gray.Pix[r*gray.Stride+c]
			switch {
			case v == palette.EgoValue:
				grid.set(Cell{Row: r, Col: c}, Ego)
			case freq[v] < palette.RareThreshold:
				// Values too rare to be part of the fixed palette are
				// transient actors and must block the path.
				grid.set(Cell{Row: r, Col: c}, Occupied)
			case free[v]:
				grid.set(Cell{Row: r, Col: c}, Free)
			default:
				grid.set(Cell{Row: r, Col: c}, Occupied)
			}
		}
	}
	return grid, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x-bounds.Min.X, y-bounds.Min.Y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
