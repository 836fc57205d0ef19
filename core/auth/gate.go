package auth

import "github.com/ecolemoderne/campus/core/user"

// Area is an application area a client may navigate to.
type Area string

const (
	AreaPublic      Area = "public"
	AreaStudent     Area = "student-area"
	AreaTeacher     Area = "teacher-area"
	AreaSecretariat Area = "secretariat-area"
	AreaAdmin       Area = "admin-area"
	AreaBackOffice  Area = "backoffice-area"

	// AreaLogin is only ever a redirect target, never a requestable area.
	AreaLogin Area = "login"
)

// Notice texts carried on deny decisions.
const (
	noticeLoginRequired  = "authentification requise"
	noticeUnauthorized   = "accès non autorisé pour votre rôle"
	noticePendingTeacher = "votre compte enseignant est en attente de validation par l'administration"
)

// Decision is the outcome of a gate check: either the area is allowed, or the
// client is redirected somewhere with a human-readable reason. A deny is never
// an error.
type Decision struct {
	Allow      bool   `json:"allow"`
	RedirectTo Area   `json:"redirect_to,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func allow() Decision {
	return Decision{Allow: true}
}

func redirect(target Area, reason string) Decision {
	return Decision{RedirectTo: target, Reason: reason}
}

// Resolve maps a user (nil for anonymous) and a requested area to a Decision.
// It is total: every (role, status, area) combination resolves to exactly one
// allow or redirect.
//
// Admins pass the gate for the back-office area too, but that path is
// additionally gated by the elevated admin session (see AdminGuard); role
// alone does not open it.
func Resolve(usr *user.User, area Area) Decision {
	if usr == nil {
		if area == AreaPublic {
			return allow()
		}
		return redirect(AreaLogin, noticeLoginRequired)
	}

	if area == AreaPublic {
		if usr.IsPendingTeacher() {
			return Decision{Allow: true, Reason: noticePendingTeacher}
		}
		return allow()
	}

	switch usr.Role {
	case user.RoleStudent:
		if area == AreaStudent {
			return allow()
		}
	case user.RoleTeacher:
		if area == AreaTeacher {
			if usr.IsValidatedTeacher() {
				return allow()
			}
			return redirect(AreaPublic, noticePendingTeacher)
		}
	case user.RoleSecretariat:
		if area == AreaSecretariat {
			return allow()
		}
	case user.RoleAdmin:
		switch area {
		case AreaStudent, AreaTeacher, AreaSecretariat, AreaAdmin, AreaBackOffice:
			return allow()
		}
	}
	return redirect(AreaPublic, noticeUnauthorized)
}

// ResolveLanding decides where a just-authenticated user lands when they
// request the public area explicitly. The redirect is deterministic by role
// and fires at most once per navigation: every redirect target resolves to
// an allow on the next Resolve call, so it cannot loop.
func ResolveLanding(usr *user.User) Decision {
	if usr == nil {
		return allow()
	}
	switch usr.Role {
	case user.RoleAdmin:
		return redirect(AreaAdmin, "")
	case user.RoleSecretariat:
		return redirect(AreaSecretariat, "")
	case user.RoleTeacher:
		if usr.IsValidatedTeacher() {
			return redirect(AreaTeacher, "")
		}
		return Decision{Allow: true, Reason: noticePendingTeacher}
	}
	// students stay on public
	return allow()
}
