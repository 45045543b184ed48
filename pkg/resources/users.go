// Package resources holds the server's demonstration resource bindings:
// a templated user-profile lookup (with an optional localized variant)
// and a static weather snapshot, wired through mcptypes.ResourceBinding
// and registry.StaticResource.
package resources

import (
	"fmt"

	"github.com/richard-senior/mcp/internal/logger"
	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/uritemplate"
)

// localizedURITemplate builds the canonical URI a localized-profile lookup
// echoes back: the {?locale} operator omits "?locale=" entirely when the
// lookup didn't bind one.
var localizedURITemplate = func() *uritemplate.Template {
	tpl, err := uritemplate.Parse("users://{user_id}/profile/localized{?locale}")
	if err != nil {
		logger.Fatal("resources: invalid localized profile URI template", err)
	}
	return tpl
}()

// profileText is the canned payload a user-profile lookup returns. A real
// deployment would back this with a user store; here it only needs to be
// deterministic enough for a client to round-trip through the URI
// template.
func profileText(userID string) string {
	return fmt.Sprintf("Profile data for user %s", userID)
}

func localizedProfileText(userID, locale string) string {
	if locale == "" {
		return profileText(userID)
	}
	return fmt.Sprintf("Profile data for user %s (%s)", userID, locale)
}

// UserProfileBinding exposes users://{user_id}/profile.
func UserProfileBinding() mcptypes.ResourceBinding {
	return mcptypes.ResourceBinding{
		Name:         "user_profile",
		Description:  "Looks up a user's profile by id",
		URITemplates: []string{"users://{user_id}/profile"},
		MIMEType:     "text/plain",
		Handler: func(vars map[string]string, _ *mcptypes.RequestContext) (*mcptypes.ResourceContent, error) {
			userID := vars["user_id"]
			return &mcptypes.ResourceContent{
				URI:      "users://" + userID + "/profile",
				MIMEType: "text/plain",
				Text:     profileText(userID),
			}, nil
		},
	}
}

// UserProfileLocalizedBinding exposes users://{user_id}/profile/localized,
// with an optional {?locale} query variable.
func UserProfileLocalizedBinding() mcptypes.ResourceBinding {
	return mcptypes.ResourceBinding{
		Name:        "user_profile_localized",
		Description: "Looks up a user's profile by id, localized to the given locale",
		URITemplates: []string{
			"users://{user_id}/profile/localized",
			"users://{user_id}/profile/localized{?locale}",
		},
		MIMEType:     "text/plain",
		Handler: func(vars map[string]string, _ *mcptypes.RequestContext) (*mcptypes.ResourceContent, error) {
			userID := vars["user_id"]
			locale := vars["locale"]
			expandVars := map[string]any{"user_id": userID}
			if locale != "" {
				expandVars["locale"] = locale
			}
			uri, err := localizedURITemplate.Expand(expandVars)
			if err != nil {
				return nil, err
			}
			return &mcptypes.ResourceContent{
				URI:      uri,
				MIMEType: "text/plain",
				Text:     localizedProfileText(userID, locale),
			}, nil
		},
	}
}
