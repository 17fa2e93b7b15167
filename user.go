package statsig

import "strings"

// Environment describes the deployment tier the user is evaluated in.
type Environment struct {
	Tier string `json:"tier"`
}

func (e Environment) getField(field string) string {
	if strings.ToLower(field) == "tier" {
		return e.Tier
	}
	return ""
}

// User carries the attributes a gate or config is evaluated against.
//
// UserID is required; calls with an empty UserID are rejected.
// PrivateAttributes participate in targeting like Custom does.
type User struct {
	UserID            string            `json:"userID"`
	Email             string            `json:"email,omitempty"`
	IPAddress         string            `json:"ip,omitempty"`
	UserAgent         string            `json:"userAgent,omitempty"`
	Country           string            `json:"country,omitempty"`
	Locale            string            `json:"locale,omitempty"`
	AppVersion        string            `json:"appVersion,omitempty"`
	Custom            map[string]string `json:"custom,omitempty"`
	PrivateAttributes map[string]string `json:"privateAttributes,omitempty"`
	CustomIDs         map[string]string `json:"customIDs,omitempty"`
	Environment       Environment       `json:"statsigEnvironment"`
}

// getField looks up a user attribute by name, case-insensitively. Top-level
// fields are tried first, then Custom, then PrivateAttributes, each with the
// raw key before its lowercased form.
func (u User) getField(field string) string {
	switch strings.ToLower(field) {
	case "userid", "user_id":
		return u.UserID
	case "email":
		return u.Email
	case "ip", "ipaddress", "ip_address":
		return u.IPAddress
	case "useragent", "user_agent":
		return u.UserAgent
	case "country":
		return u.Country
	case "locale":
		return u.Locale
	case "appversion", "app_version":
		return u.AppVersion
	}
	if v, ok := u.Custom[field]; ok {
		return v
	}
	if v, ok := u.Custom[strings.ToLower(field)]; ok {
		return v
	}
	if v, ok := u.PrivateAttributes[field]; ok {
		return v
	}
	if v, ok := u.PrivateAttributes[strings.ToLower(field)]; ok {
		return v
	}
	return ""
}

// unitID resolves the identifier that seeds bucketing for the given id
// type. Unrecognized id types fall back to the user ID.
func (u User) unitID(idType string) string {
	if strings.ToLower(idType) == "userid" {
		return u.UserID
	}
	if v, ok := u.CustomIDs[idType]; ok {
		return v
	}
	if v, ok := u.CustomIDs[strings.ToLower(idType)]; ok {
		return v
	}
	return u.UserID
}
