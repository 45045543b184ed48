package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richard-senior/mcp/pkg/registry"
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, reg.RegisterResourceBinding(UserProfileBinding()))
	require.NoError(t, reg.RegisterResourceBinding(UserProfileLocalizedBinding()))
	reg.RegisterStaticResource(WeatherDataResource())
	return reg
}

func TestUserProfileResourceReadsByID(t *testing.T) {
	reg := newTestRegistry(t)

	handler, vars, ok := reg.MatchResource("users://123/profile")
	require.True(t, ok)
	assert.Equal(t, "123", vars["user_id"])

	content, err := handler(vars, nil)
	require.NoError(t, err)
	assert.Equal(t, "Profile data for user 123", content.Text)
	assert.Equal(t, "users://123/profile", content.URI)
}

func TestUserProfileLocalizedWithoutLocale(t *testing.T) {
	reg := newTestRegistry(t)

	handler, vars, ok := reg.MatchResource("users://456/profile/localized")
	require.True(t, ok)

	content, err := handler(vars, nil)
	require.NoError(t, err)
	assert.Equal(t, "Profile data for user 456", content.Text)
	assert.Equal(t, "users://456/profile/localized", content.URI)
}

func TestUserProfileLocalizedWithLocale(t *testing.T) {
	reg := newTestRegistry(t)

	handler, vars, ok := reg.MatchResource("users://456/profile/localized?locale=fr")
	require.True(t, ok)
	assert.Equal(t, "fr", vars["locale"])

	content, err := handler(vars, nil)
	require.NoError(t, err)
	assert.Equal(t, "Profile data for user 456 (fr)", content.Text)
}

func TestUserProfileLocalizedTemplateExpansion(t *testing.T) {
	binding := UserProfileLocalizedBinding()
	require.Len(t, binding.URITemplates, 2)
}

func TestWeatherDataStaticResource(t *testing.T) {
	reg := newTestRegistry(t)

	handler, vars, ok := reg.MatchResource("weather://current")
	require.True(t, ok)

	content, err := handler(vars, nil)
	require.NoError(t, err)
	assert.Contains(t, content.Text, "London")
	assert.Equal(t, "application/json", content.MIMEType)
}
