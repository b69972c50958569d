package mapper

import (
	"github.com/pucco93/ebsi-access-control/internal/core/domain"
)

// DedupResourceRoles keeps at most one association per resource name: the
// last occurrence, in input order. Rows with an empty resource name or role
// name are dropped.
func DedupResourceRoles(in []domain.ResourceRole) []domain.ResourceRole {
	last := make(map[string]int, len(in))
	for i, rr := range in {
		if rr.ResourceName == "" || rr.Role.Name == "" {
			continue
		}
		last[rr.ResourceName] = i
	}

	out := make([]domain.ResourceRole, 0, len(last))
	for i, rr := range in {
		if j, ok := last[rr.ResourceName]; ok && j == i {
			out = append(out, rr)
		}
	}
	return out
}

// ResourceNames returns the distinct resource names of the associations in
// input order.
func ResourceNames(in []domain.ResourceRole) []string {
	seen := make(map[string]struct{}, len(in))
	names := make([]string, 0, len(in))
	for _, rr := range in {
		if _, ok := seen[rr.ResourceName]; ok {
			continue
		}
		seen[rr.ResourceName] = struct{}{}
		names = append(names, rr.ResourceName)
	}
	return names
}

// ResourceDelta splits a desired association set against the user's current
// resources.
type ResourceDelta struct {
	Added   []domain.ResourceRole
	Removed []string
	Desired []string
}

// DiffUserResources computes which associations to create and which resource
// names to remove. Associations are deduplicated first.
func DiffUserResources(current []string, desired []domain.ResourceRole) ResourceDelta {
	desired = DedupResourceRoles(desired)

	have := make(map[string]struct{}, len(current))
	for _, name := range current {
		have[name] = struct{}{}
	}

	want := make(map[string]struct{}, len(desired))
	delta := ResourceDelta{Desired: ResourceNames(desired)}
	for _, rr := range desired {
		want[rr.ResourceName] = struct{}{}
		if _, ok := have[rr.ResourceName]; !ok {
			delta.Added = append(delta.Added, rr)
		}
	}

	for _, name := range current {
		if _, ok := want[name]; !ok {
			delta.Removed = append(delta.Removed, name)
		}
	}

	return delta
}
