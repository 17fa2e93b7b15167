package statsig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserGetField(t *testing.T) {
	user := User{
		UserID:            "u1",
		Email:             "u1@example.com",
		IPAddress:         "10.0.0.1",
		UserAgent:         "agent/1.0",
		Country:           "US",
		Locale:            "en_US",
		AppVersion:        "1.2.3",
		Custom:            map[string]string{"plan": "pro", "Region": "emea"},
		PrivateAttributes: map[string]string{"secret": "s1"},
	}

	cases := []struct {
		field string
		want  string
	}{
		{"userID", "u1"},
		{"USER_ID", "u1"},
		{"email", "u1@example.com"},
		{"ip", "10.0.0.1"},
		{"ipAddress", "10.0.0.1"},
		{"ip_address", "10.0.0.1"},
		{"userAgent", "agent/1.0"},
		{"user_agent", "agent/1.0"},
		{"country", "US"},
		{"locale", "en_US"},
		{"appVersion", "1.2.3"},
		{"app_version", "1.2.3"},
		{"plan", "pro"},
		// Raw key first, lowercased second.
		{"Region", "emea"},
		{"region", "emea"},
		{"secret", "s1"},
		{"missing", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, user.getField(c.field), "getField(%q)", c.field)
	}
}

func TestUserUnitID(t *testing.T) {
	user := User{
		UserID: "u1",
		CustomIDs: map[string]string{
			"stableID":  "s-abc",
			"companyid": "c-123",
		},
	}

	cases := []struct {
		idType string
		want   string
	}{
		{"", "u1"},
		{"userID", "u1"},
		{"USERID", "u1"},
		{"stableID", "s-abc"},
		// Lowercased probe after the raw key misses.
		{"companyID", "c-123"},
		{"unknownID", "u1"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, user.unitID(c.idType), "unitID(%q)", c.idType)
	}
}

func TestEnvironmentGetField(t *testing.T) {
	env := Environment{Tier: "staging"}
	assert.Equal(t, "staging", env.getField("tier"))
	assert.Equal(t, "staging", env.getField("Tier"))
	assert.Equal(t, "", env.getField("region"))
}
