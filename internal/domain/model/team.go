package model

// Team is a named group of participants. Membership is not stored; see
// team.Manager.ListMembers.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// JoinRequest is the body of POST /teams/join.
type JoinRequest struct {
	TeamID    string `json:"team_id" validate:"required"`
	UserEmail string `json:"user_email" validate:"required"`
}

// Membership is the response of POST /teams/join.
type Membership struct {
	TeamID    string `json:"team_id"`
	UserEmail string `json:"user_email"`
}
