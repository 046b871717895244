package devapi

import (
	"time"

	authstate "github.com/goliatone/go-auth-state"
	"github.com/uptrace/bun"
)

// Account is a user that can open a session
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            string     `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Role          string     `bun:"role,notnull" json:"role"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	LoggedInAt    *time.Time `bun:"loggedin_at,nullzero" json:"loggedin_at,omitempty"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// SupportCenterRecord is a support center row
type SupportCenterRecord struct {
	bun.BaseModel `bun:"table:support_centers,alias:sc"`
	ID            string `bun:"id,pk"`
	Name          string `bun:"name,notnull"`
}

// StudentRecord is a student row. Its id is the id of the owning account.
type StudentRecord struct {
	bun.BaseModel   `bun:"table:students,alias:st"`
	ID              string               `bun:"id,pk"`
	RA              string               `bun:"ra,notnull,unique"`
	Name            string               `bun:"name,notnull"`
	Email           string               `bun:"email,notnull"`
	BirthDate       string               `bun:"birth_date"`
	SupportCenterID string               `bun:"support_center_id,nullzero"`
	SupportCenter   *SupportCenterRecord `bun:"rel:belongs-to,join:support_center_id=id"`
}

// ToProfile maps the row into the wire profile
func (s *StudentRecord) ToProfile() authstate.Profile {
	p := authstate.Profile{
		ID:             s.ID,
		RegistrationID: s.RA,
		Name:           s.Name,
		Email:          s.Email,
		BirthDate:      s.BirthDate,
	}
	if s.SupportCenter != nil {
		p.SupportCenter = authstate.SupportCenter{
			ID:   s.SupportCenter.ID,
			Name: s.SupportCenter.Name,
		}
	}
	return p
}

// AccountSeed describes an account to create, with its student record when
// the role is student.
type AccountSeed struct {
	ID       string
	Email    string
	Password string
	Role     authstate.Role
	Student  *authstate.Profile
}

// DefaultSeed is the data the dev server starts with
func DefaultSeed() []AccountSeed {
	return []AccountSeed{
		{
			ID:       "1",
			Email:    "admin@example.com",
			Password: "admin",
			Role:     authstate.RoleAdmin,
		},
		{
			ID:       "2",
			Email:    "coordinator@example.com",
			Password: "coordinator",
			Role:     authstate.RoleCoordinator,
		},
		{
			ID:       "42",
			Email:    "student@example.com",
			Password: "student",
			Role:     authstate.RoleStudent,
			Student: &authstate.Profile{
				RegistrationID: "2024001",
				Name:           "Ana Souza",
				BirthDate:      "2001-04-12",
				SupportCenter: authstate.SupportCenter{
					ID:   "sc-1",
					Name: "Polo Centro",
				},
			},
		},
	}
}
