package notify_test

import (
	"testing"

	"github.com/puppetlabs/relay-notify/pkg/notify"
	"github.com/stretchr/testify/require"
)

func TestNoticesURL(t *testing.T) {
	tests := []struct {
		Name     string
		Endpoint notify.Endpoint
		Expected string
	}{
		{
			Name:     "default base",
			Endpoint: notify.Endpoint{ProjectID: "42", ProjectKey: "abc"},
			Expected: "https://api.airbrake.io/api/v3/projects/42/notices?key=abc",
		},
		{
			Name:     "custom base with trailing slash",
			Endpoint: notify.Endpoint{BaseURL: "http://localhost:8080/", ProjectID: "42", ProjectKey: "abc"},
			Expected: "http://localhost:8080/api/v3/projects/42/notices?key=abc",
		},
		{
			Name:     "base with path prefix",
			Endpoint: notify.Endpoint{BaseURL: "https://errors.example.com/airbrake", ProjectID: "7", ProjectKey: "k"},
			Expected: "https://errors.example.com/airbrake/api/v3/projects/7/notices?key=k",
		},
		{
			Name:     "key is escaped",
			Endpoint: notify.Endpoint{ProjectID: "42", ProjectKey: "a b&c"},
			Expected: "https://api.airbrake.io/api/v3/projects/42/notices?key=a+b%26c",
		},
		{
			Name:     "project ID is escaped once",
			Endpoint: notify.Endpoint{ProjectID: "a/b c", ProjectKey: "k"},
			Expected: "https://api.airbrake.io/api/v3/projects/a%2Fb%20c/notices?key=k",
		},
	}
	for _, test := range tests {
		t.Run(test.Name, func(t *testing.T) {
			u, err := test.Endpoint.NoticesURL()
			require.NoError(t, err)
			require.Equal(t, test.Expected, u)
		})
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		Input    string
		Expected notify.Mode
	}{
		{Input: "true", Expected: notify.ModeEnabled},
		{Input: "TRUE", Expected: notify.ModeEnabled},
		{Input: "false", Expected: notify.ModeDisabled},
		{Input: "", Expected: notify.ModeDisabled},
		{Input: "log", Expected: notify.ModeLogOnly},
		{Input: " Log ", Expected: notify.ModeLogOnly},
	}
	for _, test := range tests {
		t.Run(test.Input, func(t *testing.T) {
			mode, err := notify.ParseMode(test.Input)
			require.NoError(t, err)
			require.Equal(t, test.Expected, mode)
		})
	}

	_, err := notify.ParseMode("sometimes")
	require.Error(t, err)
}
