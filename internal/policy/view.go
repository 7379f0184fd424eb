package policy

import "errors"

// View carries the point-of-view for one request: the caller's real role plus
// the optional "view as" override an owner may have activated. It is built
// once per request from the session and passed down explicitly; there is no
// ambient global.
type View struct {
	Actual Role
	ViewAs *Role
}

// EffectiveRole is the role used for every visibility and permission decision.
// Only an owner's override counts; for everyone else the actual role wins.
func (v View) EffectiveRole() Role {
	if v.Actual == RoleOwner && v.ViewAs != nil && *v.ViewAs != RoleOwner && v.ViewAs.Valid() {
		return *v.ViewAs
	}
	return v.Actual
}

// PreviewActive reports whether the owner is currently previewing the
// application as another role.
func (v View) PreviewActive() bool {
	return v.Actual == RoleOwner && v.ViewAs != nil && *v.ViewAs != RoleOwner && v.ViewAs.Valid()
}

var (
	ErrNotOwner      = errors.New("only the owner may preview another role")
	ErrBadViewAsRole = errors.New("invalid view-as role")
)

// SetViewAs validates an override change. A nil role clears the override.
// Setting one is allowed only for the owner, and "owner" itself is not a
// valid preview target. The caller persists the returned override.
func (v View) SetViewAs(role *Role) (*Role, error) {
	if v.Actual != RoleOwner {
		return nil, ErrNotOwner
	}
	if role == nil {
		return nil, nil
	}
	if !role.Valid() || *role == RoleOwner {
		return nil, ErrBadViewAsRole
	}
	r := *role
	return &r, nil
}
