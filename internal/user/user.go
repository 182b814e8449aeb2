package users

type ContextKey string

const UserKey ContextKey = "user"

// Names of the supported identity providers. "custom" is a valid target for
// the display-identity switch but never a linkable provider.
const (
	ProviderGithub  = "github"
	ProviderGoogle  = "google"
	ProviderDiscord = "discord"
	ProviderCustom  = "custom"
)

type User struct {
	ID        string  `db:"id"`
	GithubID  *string `db:"github_id"`
	GoogleID  *string `db:"google_id"`
	DiscordID *string `db:"discord_id"`

	// Active display identity, chosen from one linked provider or set manually.
	Username    string  `db:"username"`
	Avatar      *string `db:"avatar"`
	Bio         *string `db:"bio"`
	SocialLinks *string `db:"social_links"`

	// Cached per-provider identity, written when linking.
	GithubUsername  *string `db:"github_username"`
	GithubAvatar    *string `db:"github_avatar"`
	GoogleUsername  *string `db:"google_username"`
	GoogleAvatar    *string `db:"google_avatar"`
	DiscordUsername *string `db:"discord_username"`
	DiscordAvatar   *string `db:"discord_avatar"`

	IsAdmin bool `db:"is_admin"`
}

// ProviderIdentity returns the cached username/avatar for a linked provider.
// ok is false when the provider is unknown or has never been linked.
func (u *User) ProviderIdentity(provider string) (username string, avatar *string, ok bool) {
	switch provider {
	case ProviderGithub:
		if u.GithubUsername == nil {
			return "", nil, false
		}
		return *u.GithubUsername, u.GithubAvatar, true
	case ProviderGoogle:
		if u.GoogleUsername == nil {
			return "", nil, false
		}
		return *u.GoogleUsername, u.GoogleAvatar, true
	case ProviderDiscord:
		if u.DiscordUsername == nil {
			return "", nil, false
		}
		return *u.DiscordUsername, u.DiscordAvatar, true
	}
	return "", nil, false
}

// SetProviderIdentity fills the provider linkage columns on a user that is
// about to be created or linked.
func (u *User) SetProviderIdentity(provider, externalID, username string, avatar *string) {
	switch provider {
	case ProviderGithub:
		u.GithubID = &externalID
		u.GithubUsername = &username
		u.GithubAvatar = avatar
	case ProviderGoogle:
		u.GoogleID = &externalID
		u.GoogleUsername = &username
		u.GoogleAvatar = avatar
	case ProviderDiscord:
		u.DiscordID = &externalID
		u.DiscordUsername = &username
		u.DiscordAvatar = avatar
	}
}
