package probe

import "strings"

// Classifier decides whether a probe's raw output indicates an unreachable
// host.
type Classifier interface {
	Unreachable(output string) bool
}

// SubstringClassifier marks a host unreachable when the output contains any
// of the configured loss markers.
//
// Boundary assumption: the markers depend on the ping utility's output
// locale. The defaults cover the English and Russian phrasings only; other
// locales must supply their own markers via configuration rather than rely
// on this list.
type SubstringClassifier struct {
	markers []string
}

// DefaultLossMarkers are the phrasings the shipped classifier recognizes.
func DefaultLossMarkers() []string {
	return []string{"100% loss", "100% потерь", "100% packet loss"}
}

// NewSubstringClassifier builds a classifier over the given markers,
// falling back to the defaults when none are supplied.
func NewSubstringClassifier(markers []string) *SubstringClassifier {
	if len(markers) == 0 {
		markers = DefaultLossMarkers()
	}
	return &SubstringClassifier{markers: markers}
}

// Unreachable reports whether output contains any loss marker.
func (c *SubstringClassifier) Unreachable(output string) bool {
	for _, m := range c.markers {
		if strings.Contains(output, m) {
			return true
		}
	}
	return false
}
