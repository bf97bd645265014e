package access

// Rules is a role-based permission table. An empty role list means every
// caller, including anonymous ones, is allowed.
type Rules struct {
	Create []string `yaml:"create"`
	Delete []string `yaml:"delete"`
	Edit   []string `yaml:"edit"`

	// ReadOnly fields can never be edited, whatever the caller's roles
	ReadOnly []string `yaml:"readonly"`
	// Hidden fields can only be viewed by callers holding one of ViewHidden
	Hidden     []string `yaml:"hidden"`
	ViewHidden []string `yaml:"view_hidden"`
}

// RolePolicy evaluates Rules for a caller holding Roles
type RolePolicy struct {
	rules Rules
	roles map[string]struct{}
}

// NewRolePolicy creates a policy for a caller with the given roles
func NewRolePolicy(rules Rules, roles ...string) *RolePolicy {
	p := &RolePolicy{
		rules: rules,
		roles: make(map[string]struct{}, len(roles)),
	}
	for _, r := range roles {
		p.roles[r] = struct{}{}
	}
	return p
}

// Roles returns the caller's roles
func (p *RolePolicy) Roles() []string {
	out := make([]string, 0, len(p.roles))
	for r := range p.roles {
		out = append(out, r)
	}
	return out
}

func (p *RolePolicy) CanView(field string) bool {
	if contains(p.rules.Hidden, field) {
		return len(p.rules.ViewHidden) > 0 && p.holdsAny(p.rules.ViewHidden)
	}
	return true
}

func (p *RolePolicy) CanEdit(field string) bool {
	if contains(p.rules.ReadOnly, field) {
		return false
	}
	return p.allows(p.rules.Edit)
}

func (p *RolePolicy) CanCreate() bool {
	return p.allows(p.rules.Create)
}

func (p *RolePolicy) CanDelete() bool {
	return p.allows(p.rules.Delete)
}

func (p *RolePolicy) allows(required []string) bool {
	return len(required) == 0 || p.holdsAny(required)
}

func (p *RolePolicy) holdsAny(required []string) bool {
	for _, r := range required {
		if _, ok := p.roles[r]; ok {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
