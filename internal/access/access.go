// Package access classifies a presented access code against the two
// configured deployment secrets. The check is a pure function with no state;
// every endpoint runs it before doing any other work.
package access

import "crypto/hmac"

// Role is the caller classification derived from the presented code.
type Role int

const (
	// RoleNone means the code matched neither secret (or no secret is set).
	RoleNone Role = iota
	// RoleUser means the shared access code matched.
	RoleUser
	// RoleAdmin means the admin code matched. Admins pass every user gate.
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "forbidden"
	}
}

// CanRead reports whether the role passes the shared gate.
func (r Role) CanRead() bool { return r == RoleUser || r == RoleAdmin }

// CanAdmin reports whether the role passes the admin gate.
func (r Role) CanAdmin() bool { return r == RoleAdmin }

// Classify matches the presented code against the configured secrets.
// An unset secret never matches, so a deployment without codes accepts
// nobody. Comparisons are constant-time to avoid leaking which secret was
// closer.
func Classify(presented, userCode, adminCode string) Role {
	if presented == "" {
		return RoleNone
	}
	if adminCode != "" && hmac.Equal([]byte(presented), []byte(adminCode)) {
		return RoleAdmin
	}
	if userCode != "" && hmac.Equal([]byte(presented), []byte(userCode)) {
		return RoleUser
	}
	return RoleNone
}
