package authstate

// SupportCenter is the center a student is attached to
type SupportCenter struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Profile is the student record for an authenticated user.
// The zero value is the empty default record.
type Profile struct {
	ID             string        `json:"id"`
	RegistrationID string        `json:"ra"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	BirthDate      string        `json:"birthDate"`
	SupportCenter  SupportCenter `json:"supportCenter"`
}

// IsZero reports whether the profile is still the empty default record
func (p Profile) IsZero() bool {
	return p == Profile{}
}

// VerifiedIdentity is what a successful token verification yields
type VerifiedIdentity struct {
	Role Role   `json:"role"`
	ID   string `json:"id"`
}

// Valid reports whether the identity can back an authenticated session
func (v VerifiedIdentity) Valid() bool {
	return v.Role.IsValid() && v.ID != ""
}

// State is a snapshot of the provider. Consumers only ever see copies.
type State struct {
	Student         Profile `json:"student"`
	Role            Role    `json:"role"`
	UserID          string  `json:"userId"`
	IsAuthenticated bool    `json:"isAuthenticated"`
	IsLoading       bool    `json:"isLoading"`
	ProfileLoading  bool    `json:"profileLoading"`
	ProfileErr      error   `json:"-"`
	Version         uint64  `json:"version"`
}

func initialState() State {
	return State{
		IsLoading: true,
	}
}

// Resolution converts the snapshot into its tagged form
func (s State) Resolution() Resolution {
	if !s.IsAuthenticated {
		return Unauthenticated{}
	}
	return Authenticated{
		Role:    s.Role,
		UserID:  s.UserID,
		Profile: s.Student,
	}
}
