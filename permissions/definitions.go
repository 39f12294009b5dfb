package permissions

// PermissionScope defines the context in which a permission applies
type PermissionScope string

const (
	ScopeGlobal PermissionScope = "global" // applies system-wide
	ScopeMap    PermissionScope = "map"    // checked against a user map as well
)

// PermissionDefinition describes a single, specific permission
type PermissionDefinition struct {
	Key         string          `json:"key"`  // e.g. "maps.create"
	Name        string          `json:"name"` // e.g. "Create Maps"
	Description string          `json:"description"`
	Scope       PermissionScope `json:"scope"`
}

// PermissionGroupDefinition groups related permissions
type PermissionGroupDefinition struct {
	Key         string                 `json:"key"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Permissions []PermissionDefinition `json:"permissions"`
}

const (
	AnalyticsView = "analytics.view"

	MapsView   = "maps.view"
	MapsCreate = "maps.create"
	MapsEdit   = "maps.edit"
	MapsDelete = "maps.delete"

	CCTVView   = "cctv.view"
	CCTVCreate = "cctv.create"
	CCTVEdit   = "cctv.edit"
	CCTVDelete = "cctv.delete"

	PostsCreate = "posts.create"
	PostsEdit   = "posts.edit"
	PostsDelete = "posts.delete"

	NotificationsView = "notifications.view"
	NotificationsSend = "notifications.send"

	UsersView   = "users.view"
	UsersEdit   = "users.edit"
	UsersDelete = "users.delete"
	UsersBan    = "users.ban"
	UsersManage = "users.manage"

	RolesManage         = "roles.manage"
	ReferralCodesManage = "referral_codes.manage"
)

// DefinedPermissionGroups holds all statically defined permission groups and their permissions
var DefinedPermissionGroups = []PermissionGroupDefinition{
	{
		Key:         "analytics",
		Name:        "Analytics",
		Description: "Dashboard statistics and sighting reports.",
		Permissions: []PermissionDefinition{
			{Key: AnalyticsView, Name: "View Analytics", Description: "Allows viewing dashboard statistics.", Scope: ScopeGlobal},
		},
	},
	{
		Key:         "maps",
		Name:        "Map Management",
		Description: "Permissions related to user maps, their pins and drawn areas.",
		Permissions: []PermissionDefinition{
			{Key: MapsView, Name: "View Maps", Description: "Allows viewing maps and their pins.", Scope: ScopeMap},
			{Key: MapsCreate, Name: "Create Maps", Description: "Allows creating new maps.", Scope: ScopeGlobal},
			{Key: MapsEdit, Name: "Edit Maps", Description: "Allows editing any map, its viewers and areas.", Scope: ScopeMap},
			{Key: MapsDelete, Name: "Delete Maps", Description: "Allows deleting any map.", Scope: ScopeMap},
		},
	},
	{
		Key:         "cctv",
		Name:        "CCTV Management",
		Description: "Permissions related to camera feeds and video detection.",
		Permissions: []PermissionDefinition{
			{Key: CCTVView, Name: "View CCTV", Description: "Allows viewing camera feeds.", Scope: ScopeGlobal},
			{Key: CCTVCreate, Name: "Add CCTV", Description: "Allows adding custom camera feeds.", Scope: ScopeGlobal},
			{Key: CCTVEdit, Name: "Edit CCTV", Description: "Allows editing camera feeds and running detection on uploaded video.", Scope: ScopeGlobal},
			{Key: CCTVDelete, Name: "Delete CCTV", Description: "Allows removing custom camera feeds.", Scope: ScopeGlobal},
		},
	},
	{
		Key:         "posts",
		Name:        "Community Posts",
		Description: "Permissions related to community posts.",
		Permissions: []PermissionDefinition{
			{Key: PostsCreate, Name: "Create Posts", Description: "Allows publishing posts.", Scope: ScopeGlobal},
			{Key: PostsEdit, Name: "Edit Any Post", Description: "Allows editing posts written by other users.", Scope: ScopeGlobal},
			{Key: PostsDelete, Name: "Delete Any Post", Description: "Allows deleting posts written by other users.", Scope: ScopeGlobal},
		},
	},
	{
		Key:         "notifications",
		Name:        "Notifications",
		Description: "Permissions related to push notifications.",
		Permissions: []PermissionDefinition{
			{Key: NotificationsView, Name: "View Notifications", Description: "Allows viewing sent notifications.", Scope: ScopeGlobal},
			{Key: NotificationsSend, Name: "Send Notifications", Description: "Allows broadcasting push notifications to every registered device.", Scope: ScopeGlobal},
		},
	},
	{
		Key:         "users",
		Name:        "User Management",
		Description: "Permissions related to managing user accounts.",
		Permissions: []PermissionDefinition{
			{Key: UsersView, Name: "View Users", Description: "Allows viewing user accounts.", Scope: ScopeGlobal},
			{Key: UsersEdit, Name: "Edit Users", Description: "Allows editing user accounts and their roles.", Scope: ScopeGlobal},
			{Key: UsersDelete, Name: "Delete Users", Description: "Allows deleting user accounts.", Scope: ScopeGlobal},
			{Key: UsersBan, Name: "Ban Users", Description: "Allows banning and unbanning users.", Scope: ScopeGlobal},
			{Key: UsersManage, Name: "Manage Users", Description: "Full access to the user administration pages.", Scope: ScopeGlobal},
		},
	},
	{
		Key:         "roles",
		Name:        "Role Management",
		Description: "Permissions related to managing roles and their assigned permissions.",
		Permissions: []PermissionDefinition{
			{Key: RolesManage, Name: "Manage Roles", Description: "Allows creating, editing and deleting roles.", Scope: ScopeGlobal},
		},
	},
	{
		Key:         "referral_codes",
		Name:        "Referral Code Management",
		Description: "Permissions related to the codes that gate registration.",
		Permissions: []PermissionDefinition{
			{Key: ReferralCodesManage, Name: "Manage Referral Codes", Description: "Allows creating, editing and deleting referral codes.", Scope: ScopeGlobal},
		},
	},
}

var (
	allPermissionKeysMap map[string]PermissionDefinition
	allPermissionKeys    []string
)

func init() {
	allPermissionKeysMap = make(map[string]PermissionDefinition)
	for _, group := range DefinedPermissionGroups {
		for _, perm := range group.Permissions {
			if _, exists := allPermissionKeysMap[perm.Key]; exists {
				panic("permissions: duplicate key " + perm.Key)
			}
			allPermissionKeysMap[perm.Key] = perm
			allPermissionKeys = append(allPermissionKeys, perm.Key)
		}
	}
}

// GetAllPermissionDefinitions returns a map of all defined permissions, keyed by their unique string key
func GetAllPermissionDefinitions() map[string]PermissionDefinition {
	return allPermissionKeysMap
}

// GetAllPermissionKeys returns a copy of every defined key in declaration order
func GetAllPermissionKeys() []string {
	keys := make([]string, len(allPermissionKeys))
	copy(keys, allPermissionKeys)
	return keys
}

// IsValidPermissionKey checks if a given permission key is defined
func IsValidPermissionKey(key string) bool {
	_, ok := allPermissionKeysMap[key]
	return ok
}

// InvalidKeys returns the keys in the list that are not defined.
func InvalidKeys(keys []string) []string {
	var bad []string
	for _, k := range keys {
		if !IsValidPermissionKey(k) {
			bad = append(bad, k)
		}
	}
	return bad
}
