package authz

const (
	RoleOwner     = "owner"
	RoleMember    = "member"
	RoleAnonymous = "anonymous"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const DomainGlobal = "global"

const (
	ObjectProfileRecord  = "profile.record"
	ObjectProfilePrivacy = "profile.privacy"
	ObjectProfileAvatar  = "profile.avatar"
	ObjectProfileFields  = "profile.fields"
	ObjectMembersSearch  = "members.search"
)
