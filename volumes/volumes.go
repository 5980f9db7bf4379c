// Package volumes enumerates local storage volumes and decides which of
// them are eligible watch roots.
package volumes

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies a volume by its drive type.
type Kind int

const (
	KindUnknown Kind = iota
	KindNoRoot
	KindFixed
	KindRemovable
	KindNetwork
	KindOptical
	KindRAM
)

func (k Kind) String() string {
	switch k {
	case KindNoRoot:
		return "no-root"
	case KindFixed:
		return "fixed"
	case KindRemovable:
		return "removable"
	case KindNetwork:
		return "network"
	case KindOptical:
		return "optical"
	case KindRAM:
		return "ram"
	default:
		return "unknown"
	}
}

// Volume is a mounted volume as reported by the operating system.
type Volume struct {
	Root   string
	Kind   Kind
	Ready  bool
	FSType string
}

// Eligible reports whether the volume should be watched.
func (v Volume) Eligible() bool {
	return v.Ready && v.Kind == KindFixed
}

// Lister returns the volumes currently known to the system.
type Lister interface {
	Volumes() ([]Volume, error)
}

// System is the Lister backed by the host operating system.
type System struct{}

func (System) Volumes() ([]Volume, error) {
	vols, err := listVolumes()
	if err != nil {
		return nil, fmt.Errorf("failed to list volumes: %w", err)
	}
	return vols, nil
}

// Eligible returns the roots of all ready, fixed volumes in the order they
// were reported. Duplicate roots are returned once, and a root mounted
// inside another eligible root (/home under /) is dropped.
func Eligible(vols []Volume) []string {
	roots := make([]string, 0, len(vols))
	for _, v := range vols {
		if v.Eligible() {
			roots = append(roots, v.Root)
		}
	}
	return Outermost(roots)
}

// Outermost drops every root that equals or lies inside an earlier root,
// or lies inside a later one. The recursive watch on the outer root
// already sees everything below it.
func Outermost(roots []string) []string {
	out := make([]string, 0, len(roots))
	for i, r := range roots {
		covered := false
		for j, other := range roots {
			if i == j || !within(other, r) {
				continue
			}
			if j < i || !within(r, other) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

// within reports whether child is parent or a path below it.
func within(parent, child string) bool {
	rel, err := filepath.Rel(filepath.Clean(parent), filepath.Clean(child))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// EligibleRoots lists volumes with l and filters them with Eligible.
func EligibleRoots(l Lister) ([]string, error) {
	vols, err := l.Volumes()
	if err != nil {
		return nil, err
	}
	return Eligible(vols), nil
}
