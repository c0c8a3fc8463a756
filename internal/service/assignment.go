package service

import (
	"context"
	"strings"
)

// assigneeSep joins group assignments in the AssignTo column.
const assigneeSep = ", "

// EncodeAssignees joins names into the AssignTo representation.
func EncodeAssignees(names []string) string {
	return strings.Join(names, assigneeSep)
}

// DecodeAssignees splits an AssignTo value on commas, trims each part and
// drops empty segments. A single element means an individual assignment.
func DecodeAssignees(assignTo string) []string {
	parts := strings.Split(assignTo, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AssignmentResolver turns an AssignTo request value into the stored
// string and its assignee list, enforcing the group rules.
type AssignmentResolver struct {
	techs *TechnicianRegistry
}

func NewAssignmentResolver(techs *TechnicianRegistry) *AssignmentResolver {
	return &AssignmentResolver{techs: techs}
}

// Resolve accepts either a string (one name or an already joined list) or
// an array, which selects group mode. Group mode needs at least two
// distinct names. Every name must belong to an active technician.
func (a *AssignmentResolver) Resolve(ctx context.Context, v any) (string, []string, error) {
	var names []string
	switch t := v.(type) {
	case nil:
		return "", nil, validationf("AssignTo is required")
	case string:
		names = DecodeAssignees(t)
		if len(names) == 0 {
			return "", nil, validationf("AssignTo is required")
		}
	case []string:
		names = trimAll(t)
		if len(names) < 2 {
			return "", nil, validationf("at least 2 technicians required")
		}
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return "", nil, validationf("AssignTo entries must be strings")
			}
			if s = strings.TrimSpace(s); s != "" {
				names = append(names, s)
			}
		}
		if len(names) < 2 {
			return "", nil, validationf("at least 2 technicians required")
		}
	default:
		return "", nil, validationf("AssignTo must be a string or a list of names")
	}

	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return "", nil, validationf("technician %q listed more than once", n)
		}
		seen[n] = struct{}{}
	}
	for _, n := range names {
		ok, err := a.techs.IsTechnician(ctx, n)
		if err != nil {
			return "", nil, err
		}
		if !ok {
			return "", nil, validationf("%q is not an assignable technician", n)
		}
	}
	return EncodeAssignees(names), names, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
