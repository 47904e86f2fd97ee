package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldEnable           = "enable"
	fieldIsDeleted        = "is_deleted"
	fieldRefreshToken     = "refresh_token"
	fieldRefreshExpiresAt = "refresh_expires_at"
	fieldLastActive       = "last_active"
	fieldFollowerCount    = "follower_count"
	fieldFollowingCount   = "following_count"
)
