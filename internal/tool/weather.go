package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const weatherTimeout = 15 * time.Second

// WeatherTool fetches a compact weather report from wttr.in, which needs
// no API key.
type WeatherTool struct {
	client  *http.Client
	baseURL string
}

func NewWeatherTool() *WeatherTool {
	return &WeatherTool{
		client:  &http.Client{Timeout: weatherTimeout},
		baseURL: "https://wttr.in",
	}
}

func (t *WeatherTool) Name() string { return "get_weather" }
func (t *WeatherTool) Description() string {
	return "Get the current weather for a location. Provide a city name like 'Berlin' or 'New York'."
}
func (t *WeatherTool) Parameters() map[string]any {
	return ToolParameters(
		map[string]Param{
			"location": {Type: "string", Description: "City or place name to get weather for"},
		},
		[]string{"location"},
	)
}

func (t *WeatherTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	location := strings.TrimSpace(ArgsString(args, "location"))
	if location == "" {
		return "", fmt.Errorf("missing argument: location")
	}

	endpoint := fmt.Sprintf("%s/%s?format=4", t.baseURL, url.PathEscape(location))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", userAgentString)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("weather request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("weather service returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	report := strings.TrimSpace(string(body))
	if report == "" {
		return fmt.Sprintf("No weather data available for %s.", location), nil
	}
	return report, nil
}
