package domain

type Role string

const (
	RoleHealer Role = "healer"
	RoleSeeker Role = "seeker"
)

type Profile struct {
	ID          string
	Role        Role
	Email       string
	FirstName   string
	LastName    string
	DisplayName string
}

// Name resolves a display name: first+last, then display name, then "User".
func (p *Profile) Name() string {
	if p.FirstName != "" && p.LastName != "" {
		return p.FirstName + " " + p.LastName
	}
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return "User"
}
