package resources

import (
	"encoding/json"

	"github.com/richard-senior/mcp/pkg/mcptypes"
	"github.com/richard-senior/mcp/pkg/registry"
)

// weatherSnapshot is a canned payload for the static weather_data
// resource; a real deployment would back this with a weather API.
type weatherSnapshot struct {
	Location     string  `json:"location"`
	TemperatureC float64 `json:"temperatureC"`
	Conditions   string  `json:"conditions"`
}

// WeatherDataResource exposes a fixed, non-templated weather snapshot
// under weather://current.
func WeatherDataResource() registry.StaticResource {
	snapshot := weatherSnapshot{
		Location:     "London",
		TemperatureC: 18.5,
		Conditions:   "Partly cloudy",
	}

	return registry.StaticResource{
		Name:        "weather_data",
		Description: "A static weather snapshot",
		URI:         "weather://current",
		MIMEType:    "application/json",
		Handler: func(_ map[string]string, _ *mcptypes.RequestContext) (*mcptypes.ResourceContent, error) {
			body, err := json.Marshal(snapshot)
			if err != nil {
				return nil, err
			}
			return &mcptypes.ResourceContent{
				URI:      "weather://current",
				MIMEType: "application/json",
				Text:     string(body),
			}, nil
		},
	}
}
