package teams

import "errors"

var (
	// ErrTeamNotFound is returned when a team doesn't exist.
	ErrTeamNotFound = errors.New("team not found")
	// ErrTeamExists is returned when a team name is already taken.
	ErrTeamExists = errors.New("team already exists")
	// ErrMemberNotFound is returned when a referenced user doesn't exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrNotMember is returned when removing a user who isn't on the team.
	ErrNotMember = errors.New("user is not a team member")
)
