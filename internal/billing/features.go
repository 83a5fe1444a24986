package billing

// FeatureID identifies a plan-gated capability. IDs match keys in the
// plan's metadata.
type FeatureID string

const (
	FeatureTeamMembers   FeatureID = "TEAM_MEMBERS"
	FeatureInvitations   FeatureID = "INVITATIONS"
	FeatureAPIRequests   FeatureID = "API_REQUESTS"
	FeatureCustomDomains FeatureID = "CUSTOM_DOMAINS"
)

// FeatureMeta describes one billable feature. Table names the countable
// resource backing its usage; flag-only features leave it empty.
type FeatureMeta struct {
	Label string
	Table string
}

// Features is the global billing feature-metadata configuration. Plan
// metadata keys not declared here are ignored by quota accounting.
var Features = map[FeatureID]FeatureMeta{
	FeatureTeamMembers:   {Label: "Team members", Table: "members"},
	FeatureInvitations:   {Label: "Invitations", Table: "invitations"},
	FeatureAPIRequests:   {Label: "API requests", Table: "api_requests"},
	FeatureCustomDomains: {Label: "Custom domains"}, // flag-only
}

// Countable reports whether a feature has a backing resource table.
func (m FeatureMeta) Countable() bool {
	return m.Table != ""
}

// UnboundedWindow lists countable features whose usage is counted over all
// time instead of the current calendar month.
var UnboundedWindow = map[FeatureID]bool{
	FeatureTeamMembers: true,
}
