package lod1

import (
	"fmt"
	"sort"
)

// heightTolerance 高度比较容差
const heightTolerance = 1e-9

// HeightProfile is the ascending list of breakpoints registered at one ring
// vertex. The first breakpoint is the base of the feature and the last one
// its roof.
type HeightProfile []float64

// NewHeightProfile sorts and deduplicates the breakpoints between base and
// roof. A breakpoint outside [base, roof] is rejected instead of clipped, so
// callers decide what belongs to a taller neighbour before calling.
func NewHeightProfile(base, roof float64, breaks ...float64) (HeightProfile, error) {
	if roof < base {
		return nil, fmt.Errorf("roof %.3f below base %.3f: %w", roof, base, ErrBreakpointBelowBase)
	}
	hs := make([]float64, 0, len(breaks)+2)
	hs = append(hs, base)
	for _, b := range breaks {
		if b > roof+heightTolerance {
			return nil, fmt.Errorf("breakpoint %.3f above roof %.3f: %w", b, roof, ErrBreakpointAboveRoof)
		}
		if b < base-heightTolerance {
			return nil, fmt.Errorf("breakpoint %.3f below base %.3f: %w", b, base, ErrBreakpointBelowBase)
		}
		hs = append(hs, b)
	}
	hs = append(hs, roof)
	sort.Float64s(hs)

	out := hs[:1]
	for _, h := range hs[1:] {
		if h-out[len(out)-1] > heightTolerance {
			out = append(out, h)
		}
	}
	// 端点强制为 base/roof，避免容差内的近似值替代
	out[0] = base
	out[len(out)-1] = roof
	if len(out) == 1 {
		// 零高度要素也保留两个断点
		out = append(out, roof)
	}
	return HeightProfile(out), nil
}

// Base 最低断点
func (p HeightProfile) Base() float64 { return p[0] }

// Roof 最高断点
func (p HeightProfile) Roof() float64 { return p[len(p)-1] }

// Simple reports whether the profile is a plain base/roof pair.
func (p HeightProfile) Simple() bool { return len(p) == 2 }
