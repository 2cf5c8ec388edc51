// Package protocol defines the mock-interview WebSocket wire format.
//
// Every frame is an Envelope {"type": ..., "payload": {...}}. Inbound frames
// decode into one of a closed set of Event structs; anything else is rejected
// before it reaches session state.
package protocol

type Type string

// Client → Server
const (
	TypeJoinPool            Type = "join_interview_pool"
	TypeFindMatch           Type = "find_match"
	TypeCancelSearch        Type = "cancel_search"
	TypeSendMessage         Type = "send_message"
	TypeCodeUpdate          Type = "code_update"
	TypeVoiceMuteStatus     Type = "voice_mute_status"
	TypeVoiceDeafenStatus   Type = "voice_deafen_status"
	TypeSwapRoles           Type = "swap_roles"
	TypeDisconnectInterview Type = "disconnect_interview"
	TypeHeartbeat           Type = "heartbeat"
	TypeTypingStart         Type = "typing_start"
	TypeTypingStop          Type = "typing_stop"
	TypeTestResults         Type = "test_results"
	TypeVoiceOffer          Type = "voice_offer"
	TypeVoiceAnswer         Type = "voice_answer"
	TypeVoiceICECandidate   Type = "voice_ice_candidate"
	TypeStartRound          Type = "start_round"
)

// Server → Client. code_update, typing_*, test_results and voice_* reuse the
// inbound names.
const (
	TypeOnlineUsersCount    Type = "online_users_count"
	TypeWaitingUsers        Type = "waiting_users"
	TypeMatchFound          Type = "match_found"
	TypeReceiveMessage      Type = "receive_message"
	TypePartnerMuteStatus   Type = "partner_mute_status"
	TypePartnerDeafenStatus Type = "partner_deafen_status"
	TypeRolesSwapped        Type = "roles_swapped"
	TypePartnerDisconnected Type = "partner_disconnected"
	TypeHeartbeatResponse   Type = "heartbeat_response"
	TypeNewProblem          Type = "new_problem"
	TypeError               Type = "error"
)

// SwapReason 역할 교대 트리거
type SwapReason string

const (
	SwapReasonRequest SwapReason = "request"
	SwapReasonTimer   SwapReason = "timer"
)
