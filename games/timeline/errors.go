/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package timeline

// Code is a machine-readable error code.
type Code string

const (
	CodeRoomNotFound        Code = "ROOM_NOT_FOUND"
	CodeUnauthorized        Code = "UNAUTHORIZED"
	CodeAdminRequired       Code = "ADMIN_REQUIRED"
	CodeNoVotes             Code = "NO_VOTES"
	CodeAlreadyClaimed      Code = "TOKEN_ALREADY_CLAIMED"
	CodeTokenCapReached     Code = "TOKEN_CAP_REACHED"
	CodeNoTokens            Code = "NO_TOKENS"
	CodeOddMemberCount      Code = "ODD_MEMBER_COUNT"
	CodeNotATeamMember      Code = "NOT_A_TEAM_MEMBER"
	CodeTrackSourceFailure  Code = "TRACK_SOURCE_FAILURE"
	CodeUnknownTeam         Code = "UNKNOWN_TEAM"
	CodeInvalidPayload      Code = "INVALID_PAYLOAD"
	CodeUnknownAction       Code = "UNKNOWN_ACTION"
	CodeNotInRoom           Code = "NOT_IN_ROOM"
	CodeIncorrectAdminLogin Code = "INCORRECT_ADMIN_LOGIN"
	CodeNothingToChallenge  Code = "NOTHING_TO_CHALLENGE"
	CodeOwnPlacement        Code = "OWN_PLACEMENT"
)

// Error is a rejected action. It never leaves the room partially mutated.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on code, so wrapped and annotated errors compare equal to the
// sentinels below.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// with returns a copy of e carrying cause.
func (e *Error) with(cause error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Cause: cause}
}

var (
	ErrRoomNotFound        = &Error{Code: CodeRoomNotFound, Message: "room not found"}
	ErrUnauthorized        = &Error{Code: CodeUnauthorized, Message: "only the host or an admin can perform this action"}
	ErrAdminRequired       = &Error{Code: CodeAdminRequired, Message: "admin privileges required"}
	ErrNoVotes             = &Error{Code: CodeNoVotes, Message: "team has not cast any votes"}
	ErrAlreadyClaimed      = &Error{Code: CodeAlreadyClaimed, Message: "token already claimed for this song"}
	ErrTokenCapReached     = &Error{Code: CodeTokenCapReached, Message: "team already holds the maximum number of tokens"}
	ErrNoTokens            = &Error{Code: CodeNoTokens, Message: "team has no tokens left to challenge with"}
	ErrOddMemberCount      = &Error{Code: CodeOddMemberCount, Message: "an oracle requires an even number of team members"}
	ErrNotATeamMember      = &Error{Code: CodeNotATeamMember, Message: "player is not a member of this team"}
	ErrTrackSourceFailure  = &Error{Code: CodeTrackSourceFailure, Message: "no tracks found in playlist"}
	ErrUnknownTeam         = &Error{Code: CodeUnknownTeam, Message: "unknown team"}
	ErrInvalidPayload      = &Error{Code: CodeInvalidPayload, Message: "invalid action payload"}
	ErrUnknownAction       = &Error{Code: CodeUnknownAction, Message: "unknown action"}
	ErrNotInRoom           = &Error{Code: CodeNotInRoom, Message: "connection is not a player in this room"}
	ErrIncorrectAdminLogin = &Error{Code: CodeIncorrectAdminLogin, Message: "incorrect admin code"}
	ErrNothingToChallenge  = &Error{Code: CodeNothingToChallenge, Message: "no placement is open to challenge"}
	ErrOwnPlacement        = &Error{Code: CodeOwnPlacement, Message: "only the opposing team can answer a placement"}
)
