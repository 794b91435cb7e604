package handler

// Operation is the closed set of API operations. The zero value is invalid,
// so a name that fails to parse can never be dispatched by accident.
type Operation int

const (
	OpUnspecified Operation = iota
	OpRegister
	OpLogin
	OpLogout
	OpGetCurrentUser
	OpUpdateProfile
	OpGetMembers
	OpGetLeaders
	OpGetPendingMembers
	OpApproveMember
	OpDeclineMember
	OpGetAllMembers
	OpDeleteMember
	OpDeleteMemberAdmin
	OpGetActivityLog
)

var operationNames = map[Operation]string{
	OpRegister:          "register",
	OpLogin:             "login",
	OpLogout:            "logout",
	OpGetCurrentUser:    "getCurrentUser",
	OpUpdateProfile:     "updateProfile",
	OpGetMembers:        "getMembers",
	OpGetLeaders:        "getLeaders",
	OpGetPendingMembers: "getPendingMembers",
	OpApproveMember:     "approveMember",
	OpDeclineMember:     "declineMember",
	OpGetAllMembers:     "getAllMembers",
	OpDeleteMember:      "deleteMember",
	OpDeleteMemberAdmin: "deleteMemberAdmin",
	OpGetActivityLog:    "getActivityLog",
}

var operationsByName = func() map[string]Operation {
	m := make(map[string]Operation, len(operationNames))
	for op, name := range operationNames {
		m[name] = op
	}
	return m
}()

// ParseOperation maps a wire name to an Operation. Names are case-sensitive.
func ParseOperation(name string) (Operation, bool) {
	op, ok := operationsByName[name]
	return op, ok
}

func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unspecified"
}

// Mutating reports whether the operation changes state and so must arrive
// as a POST.
func (o Operation) Mutating() bool {
	switch o {
	case OpRegister, OpLogin, OpLogout, OpUpdateProfile,
		OpApproveMember, OpDeclineMember, OpDeleteMember, OpDeleteMemberAdmin:
		return true
	default:
		return false
	}
}
