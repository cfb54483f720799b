package domain

// Actor is the platform user behind an intent. Role membership and the
// administrator bit are facts owned by the chat platform and passed in.
type Actor struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles,omitempty"`
	Admin bool     `json:"admin,omitempty"`
}
