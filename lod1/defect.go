package lod1

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedGeometry       = errors.New("malformed geometry")
	ErrIndexSpaceMismatch      = errors.New("index space mismatch")
	ErrNoDataElevation         = errors.New("no-data elevation")
	ErrDuplicateObjectIdentity = errors.New("duplicate object identity")
	ErrBreakpointAboveRoof     = errors.New("height breakpoint above roof")
	ErrBreakpointBelowBase     = errors.New("height breakpoint below base")
	ErrConstraintGraph         = errors.New("broken constraint graph")
	ErrMissingAttribute        = errors.New("missing height attribute")
	ErrTerrainBoundary         = errors.New("footprint reaches the terrain boundary")
)

// Structural reports whether err must abort the whole region build rather
// than skip a single feature.
func Structural(err error) bool {
	return errors.Is(err, ErrIndexSpaceMismatch) ||
		errors.Is(err, ErrConstraintGraph) ||
		errors.Is(err, ErrDuplicateObjectIdentity)
}

// Defect 单个要素的缺陷记录
type Defect struct {
	FeatureID string `json:"feature_id"`
	Stage     string `json:"stage"`
	Err       error  `json:"-"`
}

func (d Defect) Error() string {
	return fmt.Sprintf("%s [%s]: %v", d.FeatureID, d.Stage, d.Err)
}

func (d Defect) Unwrap() error { return d.Err }

// DefectList collects per-feature defects of one region build.
type DefectList []Defect

// Add appends a defect unless err is nil.
func (l *DefectList) Add(featureID, stage string, err error) {
	if err == nil {
		return
	}
	*l = append(*l, Defect{FeatureID: featureID, Stage: stage, Err: err})
}

func (l DefectList) Error() string {
	msgs := make([]string, len(l))
	for i, d := range l {
		msgs[i] = d.Error()
	}
	return fmt.Sprintf("%d defective features: %s", len(l), strings.Join(msgs, "; "))
}

// Features returns the identities of the defective features in report order.
func (l DefectList) Features() []string {
	ids := make([]string, 0, len(l))
	seen := make(map[string]bool)
	for _, d := range l {
		if !seen[d.FeatureID] {
			seen[d.FeatureID] = true
			ids = append(ids, d.FeatureID)
		}
	}
	return ids
}

// Has reports whether featureID has at least one defect.
func (l DefectList) Has(featureID string) bool {
	for _, d := range l {
		if d.FeatureID == featureID {
			return true
		}
	}
	return false
}

// Report is the JSON friendly form stored with build records.
func (l DefectList) Report() []map[string]string {
	out := make([]map[string]string, 0, len(l))
	for _, d := range l {
		out = append(out, map[string]string{
			"feature_id": d.FeatureID,
			"stage":      d.Stage,
			"error":      d.Err.Error(),
		})
	}
	return out
}
