package types

// Box is a normalized bounding box with coordinates in the [0,1] range.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Center returns the normalized center point of the box.
func (b Box) Center() (float64, float64) {
	return b.X + b.W/2, b.Y + b.H/2
}

// Subject is the primary subject a vision model located in an image:
// usually a face or head-and-shoulders region, otherwise the most salient
// object.
type Subject struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// Placement is a model's suggestion for where the crop circle should start.
type Placement struct {
	Primary     Subject `json:"primary"`
	Description string  `json:"description"`
}

// CenteredFallback is the placement used when a model cannot locate a
// subject or returns an unusable response: the middle half of the image.
func CenteredFallback(label, description string) *Placement {
	return &Placement{
		Primary: Subject{
			Label:      label,
			Confidence: 0.1,
			Box:        Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
	}
}
