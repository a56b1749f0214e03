// Package resolve computes which sessions depend on a workspace entity.
// The functions are pure: they take the current session list and return the
// affected subset, leaving the decision of what to do about it to callers.
package resolve

import "github.com/virga-tools/virga/internal/core"

// AffectedByProfileDeletion returns the sessions assigned to the given
// named profile. These survive profile deletion by reassignment, not
// removal, so the result is a reassignment worklist.
func AffectedByProfileDeletion(sessions []core.Session, profileID string) []core.Session {
	var out []core.Session
	for _, s := range sessions {
		if s.Type.UsesProfile() && s.ProfileID == profileID {
			out = append(out, s)
		}
	}
	return out
}

// AffectedByIdpURLDeletion returns the federated sessions bound to the
// given identity provider URL. Unlike profiles there is no fallback: these
// sessions cannot exist without their IdP and are deleted with it.
func AffectedByIdpURLDeletion(sessions []core.Session, idpURLID string) []core.Session {
	var out []core.Session
	for _, s := range sessions {
		if s.Type == core.TypeAWSIAMRoleFederated && s.IdpURLID == idpURLID {
			out = append(out, s)
		}
	}
	return out
}

// AffectedBySessionDeletion returns the chained sessions that descend from
// the given session, transitively: children of children are included, since
// removing any ancestor severs the whole credential chain beneath it. The
// root session itself is not included. Order is breadth-first from the root.
func AffectedBySessionDeletion(sessions []core.Session, sessionID string) []core.Session {
	children := make(map[string][]core.Session)
	for _, s := range sessions {
		if s.Type == core.TypeAWSIAMRoleChained && s.ParentSessionID != "" {
			children[s.ParentSessionID] = append(children[s.ParentSessionID], s)
		}
	}

	var out []core.Session
	queue := []string{sessionID}
	seen := map[string]bool{sessionID: true}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range children[id] {
			if seen[child.ID] {
				continue
			}
			seen[child.ID] = true
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out
}

// ExpandWithChainedDescendants returns the given roots followed by every
// chained session transitively descending from any of them, deduplicated.
// Each root precedes its own descendants, so iterating the result in reverse
// removes children before parents.
func ExpandWithChainedDescendants(sessions []core.Session, roots []core.Session) []core.Session {
	var out []core.Session
	seen := make(map[string]bool, len(roots))
	for _, root := range roots {
		if seen[root.ID] {
			continue
		}
		seen[root.ID] = true
		out = append(out, root)
		for _, desc := range AffectedBySessionDeletion(sessions, root.ID) {
			if seen[desc.ID] {
				continue
			}
			seen[desc.ID] = true
			out = append(out, desc)
		}
	}
	return out
}

// AffectedByIntegrationDeletion returns the sessions provisioned by the
// given integration. They are owned by the integration and deleted with it.
func AffectedByIntegrationDeletion(sessions []core.Session, integrationID string) []core.Session {
	var out []core.Session
	for _, s := range sessions {
		if s.IntegrationID == integrationID {
			out = append(out, s)
		}
	}
	return out
}

// ActiveAmong filters a session list down to its non-inactive members.
// Deletion flows use this to know which affected sessions need stopping.
func ActiveAmong(sessions []core.Session) []core.Session {
	var out []core.Session
	for _, s := range sessions {
		if s.Status != core.StatusInactive {
			out = append(out, s)
		}
	}
	return out
}
