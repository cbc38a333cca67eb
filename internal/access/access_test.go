package access

import "testing"

func TestClassify(t *testing.T) {
	const (
		userCode  = "tajne"
		adminCode = "bardzo-tajne"
	)

	tests := []struct {
		name      string
		presented string
		userCode  string
		adminCode string
		want      Role
	}{
		{"user code matches", userCode, userCode, adminCode, RoleUser},
		{"admin code matches", adminCode, userCode, adminCode, RoleAdmin},
		{"wrong code", "guess", userCode, adminCode, RoleNone},
		{"empty code", "", userCode, adminCode, RoleNone},
		{"no secrets configured", userCode, "", "", RoleNone},
		{"empty code with no secrets", "", "", "", RoleNone},
		{"only admin configured", adminCode, "", adminCode, RoleAdmin},
		{"user code when only admin configured", userCode, "", adminCode, RoleNone},
		{"case sensitive", "Tajne", userCode, adminCode, RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.presented, tt.userCode, tt.adminCode)
			if got != tt.want {
				t.Errorf("Classify(%q) = %v, want %v", tt.presented, got, tt.want)
			}
		})
	}
}

func TestRolePermissions(t *testing.T) {
	if RoleNone.CanRead() || RoleNone.CanAdmin() {
		t.Error("RoleNone should have no permissions")
	}
	if !RoleUser.CanRead() {
		t.Error("RoleUser should pass the read gate")
	}
	if RoleUser.CanAdmin() {
		t.Error("RoleUser should not pass the admin gate")
	}
	if !RoleAdmin.CanRead() || !RoleAdmin.CanAdmin() {
		t.Error("RoleAdmin should pass both gates")
	}
}

func TestAdminCodeAlsoWhenCodesEqual(t *testing.T) {
	// A deployment that sets both secrets to the same value should grant
	// the stronger role.
	got := Classify("code", "code", "code")
	if got != RoleAdmin {
		t.Errorf("Classify with equal secrets = %v, want RoleAdmin", got)
	}
}
