package rules

// RequiresModeration decides whether a report from a user with the given trust
// goes to the moderation queue. A zero quota or a missing moderation
// destination disables moderation entirely.
func RequiresModeration(trust, quota int, moderationConfigured bool) bool {
	if quota <= 0 || !moderationConfigured {
		return false
	}
	return trust < quota
}
