package core

// alertKey identifies a condition on a subject: (item, low_stock), (patient, birthday), ...
type alertKey struct {
	subject string
	kind    string
}

// alertIndex maps each unresolved condition to the id of its alert so
// duplicate suppression is a map lookup.
type alertIndex map[alertKey]string

func (ix alertIndex) has(subject, kind string) bool {
	_, ok := ix[alertKey{subject, kind}]
	return ok
}

func (ix alertIndex) get(subject, kind string) (string, bool) {
	id, ok := ix[alertKey{subject, kind}]
	return id, ok
}

func (ix alertIndex) add(subject, kind, alertID string) {
	ix[alertKey{subject, kind}] = alertID
}

// remove drops the entry only if it still points at alertID.
func (ix alertIndex) remove(subject, kind, alertID string) {
	k := alertKey{subject, kind}
	if ix[k] == alertID {
		delete(ix, k)
	}
}
