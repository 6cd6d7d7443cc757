package redis

// KeyPrefix namespaces every key written by playwatch
const KeyPrefix = "playwatch:"

// UserKey returns the Redis key holding a user record
func UserKey(key string) string {
	return KeyPrefix + "user:" + key
}

// UserTargetsKey returns the list of a user's target IDs, insertion order
func UserTargetsKey(key string) string {
	return UserKey(key) + ":targets"
}

// UserTargetPackagesKey returns the hash package name -> target ID used to
// reject duplicate targets
func UserTargetPackagesKey(key string) string {
	return UserKey(key) + ":target-pkgs"
}

// UserProxiesKey returns the list of a user's proxy IDs, insertion order
func UserProxiesKey(key string) string {
	return UserKey(key) + ":proxies"
}

// UserSchedulesKey returns the hash "HH:MM" -> schedule JSON
func UserSchedulesKey(key string) string {
	return UserKey(key) + ":schedules"
}

// TargetKey returns the Redis key for a target by ID
func TargetKey(id string) string {
	return KeyPrefix + "target:" + id
}

// ResultsKey returns the list of a target's results, newest first
func ResultsKey(targetID string) string {
	return TargetKey(targetID) + ":results"
}

// ProxyKey returns the Redis key for a proxy by ID
func ProxyKey(id string) string {
	return KeyPrefix + "proxy:" + id
}

// DueKey returns the set of user keys with an active schedule at clock
func DueKey(clock string) string {
	return KeyPrefix + "schedule:" + clock
}
