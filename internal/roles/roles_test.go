package roles

import "testing"

func TestResolverRole(t *testing.T) {
	r := NewResolver("@boss, 111", "222, @Helper")

	tests := []struct {
		name   string
		id     string
		handle string
		want   Role
	}{
		{"owner by handle", "999", "Boss", RoleOwner},
		{"owner by id", "111", "", RoleOwner},
		{"admin by id", "222", "someone", RoleAdmin},
		{"admin by handle case-insensitive", "333", "@HELPER", RoleAdmin},
		{"plain user", "444", "nobody", RoleUser},
		{"empty everything", "", "", RoleUser},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Role(tt.id, tt.handle); got != tt.want {
				t.Errorf("Role(%q, %q) = %v, want %v", tt.id, tt.handle, got, tt.want)
			}
		})
	}
}

func TestOwnerWinsOverAdmin(t *testing.T) {
	// Same handle in both lists: highest role wins.
	r := NewResolver("@dual", "@dual")
	if got := r.Role("", "dual"); got != RoleOwner {
		t.Errorf("Role = %v, want RoleOwner", got)
	}
}

func TestPrivileged(t *testing.T) {
	if !RoleOwner.Privileged() || !RoleAdmin.Privileged() {
		t.Error("owner and admin must be privileged")
	}
	if RoleUser.Privileged() {
		t.Error("plain user must not be privileged")
	}
}
