package session

// PersistKind names a kind of session data eligible for durable persistence.
// The kind doubles as the durable store key.
type PersistKind string

const (
	PersistUser         PersistKind = "user"
	PersistAccessToken  PersistKind = "access_token"
	PersistIDToken      PersistKind = "id_token"
	PersistRefreshToken PersistKind = "refresh_token"
)

// AllPersistKinds returns every persistable kind.  Logout deletes all of
// them, not just the currently enabled ones, to clean up leftovers persisted
// under an earlier policy.
func AllPersistKinds() []PersistKind {
	return []PersistKind{PersistUser, PersistAccessToken, PersistIDToken, PersistRefreshToken}
}

// persistencePolicy is the fixed set of kinds written to the durable store.
// It is built once from the construction-time toggles; kinds cannot be added
// later.  A kind outside the policy is still kept in memory so the running
// process can use it.
type persistencePolicy struct {
	enabled map[PersistKind]struct{}
}

// defaultPersistencePolicy persists the user only.
func defaultPersistencePolicy() persistencePolicy {
	return newPersistencePolicy(true, false, false, false)
}

func newPersistencePolicy(user, accessToken, idToken, refreshToken bool) persistencePolicy {
	p := persistencePolicy{enabled: map[PersistKind]struct{}{}}
	for kind, on := range map[PersistKind]bool{
		PersistUser:         user,
		PersistAccessToken:  accessToken,
		PersistIDToken:      idToken,
		PersistRefreshToken: refreshToken,
	} {
		if on {
			p.enabled[kind] = struct{}{}
		}
	}
	return p
}

// Enabled reports whether kind is written to the durable store.
func (p persistencePolicy) Enabled(kind PersistKind) bool {
	_, ok := p.enabled[kind]
	return ok
}
