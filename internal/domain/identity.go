package domain

// ActorIdentity is derived from a bearer token on every presentation and is
// never cached beyond a single request. An empty ActorID means the caller is
// unauthenticated; it is never omitted or nil.
type ActorIdentity struct {
	ActorID  string `json:"actor_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Subject  string `json:"user_sub"`
}

// Authenticated reports whether the token carried any usable identity claim.
func (a ActorIdentity) Authenticated() bool {
	return a.ActorID != ""
}
