// Package alias defines the short-URL record owned by a user.
package alias

// Alias maps a short code to a target URL on behalf of its owner.
type Alias struct {
	// Code is the unique short identifier, 6 symbols from [A-Za-z0-9].
	Code string `json:"code"`

	// TargetURL is the destination the public redirect points at.
	TargetURL string `json:"target_url"`

	// OwnerID is the User.ID of the creator. Immutable after creation;
	// only the owner may read, update or delete the record through the
	// owner-scoped API, while the redirect path stays public.
	OwnerID string `json:"owner_id"`
}
