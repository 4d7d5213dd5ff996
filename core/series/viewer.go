package series

import "github.com/trezcool/tazama/core/user"

// Role is a viewer's privilege level as far as episode access goes.
type Role int

const (
	RoleUser Role = iota
	RoleUserAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUserAdmin:
		return "USER_ADMIN"
	case RoleSuperAdmin:
		return "SUPER_ADMIN"
	default:
		return "USER"
	}
}

// Viewer is whoever is looking at a series: either anonymous or an authenticated user.
// The zero Viewer is anonymous.
type Viewer struct {
	authenticated bool
	id            string
	role          Role
}

func AnonymousViewer() Viewer {
	return Viewer{}
}

func UserViewer(id string, role Role) Viewer {
	return Viewer{authenticated: true, id: id, role: role}
}

// ViewerFromUser maps usr's highest role onto a Viewer.
func ViewerFromUser(usr user.User) Viewer {
	role := RoleUser
	switch {
	case usr.IsSuperAdmin():
		role = RoleSuperAdmin
	case usr.IsAdmin():
		role = RoleUserAdmin
	}
	return UserViewer(usr.ID, role)
}

func (v Viewer) IsAnonymous() bool { return !v.authenticated }

// ID returns the viewer's user ID; ok is false for anonymous viewers.
func (v Viewer) ID() (id string, ok bool) {
	return v.id, v.authenticated
}

// Role returns the viewer's role; anonymous viewers have none.
func (v Viewer) Role() (role Role, ok bool) {
	return v.role, v.authenticated
}

func (v Viewer) isSuperAdmin() bool {
	return v.authenticated && v.role == RoleSuperAdmin
}

func (v Viewer) isAuthor(authorID string) bool {
	return v.authenticated && v.id != "" && v.id == authorID
}
