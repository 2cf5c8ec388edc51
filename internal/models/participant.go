package models

// Participant 인증 협력자가 넘겨준 사용자 식별 정보
type Participant struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceStatus string

const (
	PresenceDisconnected PresenceStatus = "disconnected"
	PresenceOnline       PresenceStatus = "online"
	PresenceSearching    PresenceStatus = "searching"
	PresenceInSession    PresenceStatus = "in_session"
)

type Role string

const (
	RoleSolver      Role = "solver"
	RoleInterviewer Role = "interviewer"
)

// Opposite 반대 역할
func (r Role) Opposite() Role {
	if r == RoleSolver {
		return RoleInterviewer
	}
	return RoleSolver
}

func (r Role) Valid() bool {
	return r == RoleSolver || r == RoleInterviewer
}
