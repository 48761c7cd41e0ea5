package models

// Profile is the payload sent to the user-profile microservice on account creation.
type Profile struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Role     string `json:"role"`
	Picture  string `json:"picture,omitempty"`
}

// Identity is what a federated identity provider vouches for.
type Identity struct {
	Email    string
	Name     string
	LastName string
	Picture  string
}
