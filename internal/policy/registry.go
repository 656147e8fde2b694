package policy

import "github.com/gzhole/toolgate/internal/invocation"

// Registry is an ordered, immutable list of detectors. Order decides which
// category is reported when several would match; any match blocks.
type Registry struct {
	detectors []Detector
}

// DefaultRegistry returns the built-in detectors in priority order:
// sensitive files and env files for every tool, then for Bash fork bombs,
// rm, other deletions, disk operations, network, email, permissions, user
// management and system control.
func DefaultRegistry() *Registry {
	return NewRegistry(nil)
}

// NewRegistry builds the default order with protected paths added to the
// sensitive file checks.
func NewRegistry(protected *PathSet) *Registry {
	groups := [][]Detector{
		sensitiveDetectors(protected),
		envDetectors(),
		forkBombDetectors(),
		rmDetectors(),
		deletionDetectors(),
		systemDetectors(),
		networkDetectors(),
		emailDetectors(),
		permissionDetectors(),
		userDetectors(),
		controlDetectors(),
	}

	r := &Registry{}
	for _, g := range groups {
		r.detectors = append(r.detectors, g...)
	}
	return r
}

// RegistryOf wraps an explicit detector list.
func RegistryOf(detectors ...Detector) *Registry {
	return &Registry{detectors: append([]Detector(nil), detectors...)}
}

// Detectors returns a copy of the ordered detector list.
func (r *Registry) Detectors() []Detector {
	return append([]Detector(nil), r.detectors...)
}

// Match returns the first detector that fires for s.
func (r *Registry) Match(s *Subject) (Detector, bool) {
	bash := s.View.Kind == invocation.KindBash
	for _, d := range r.detectors {
		if d.Scope == BashOnly && !bash {
			continue
		}
		if d.Match(s) {
			return d, true
		}
	}
	return Detector{}, false
}
