package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Profile is the slice of a VK user profile the bridge enriches contacts
// with: name parts, birth date, and city.
type Profile struct {
	FirstName  string
	LastName   string
	ScreenName string
	Bdate      string
	City       string
}

// DisplayName builds a human name from the profile: "First Last", falling
// back to the screen name. Empty when the profile has neither.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name != "" {
		return name
	}
	return strings.TrimSpace(p.ScreenName)
}

// FetchProfile looks up a user via users.get. The city field arrives
// either as an object with a title or as a plain string depending on API
// version; both are handled. An unknown user yields a zero Profile, not
// an error.
func (s *Sender) FetchProfile(ctx context.Context, userID string) (Profile, error) {
	params := url.Values{}
	params.Set("user_ids", userID)
	params.Set("fields", "bdate,city,screen_name")

	raw, err := s.call(ctx, "users.get", params)
	if err != nil {
		return Profile{}, err
	}

	var users []struct {
		FirstName  string          `json:"first_name"`
		LastName   string          `json:"last_name"`
		ScreenName string          `json:"screen_name"`
		Bdate      string          `json:"bdate"`
		City       json.RawMessage `json:"city"`
	}
	if err := json.Unmarshal(raw, &users); err != nil {
		return Profile{}, fmt.Errorf("failed to parse users.get response: %w", err)
	}
	if len(users) == 0 {
		return Profile{}, nil
	}

	u := users[0]
	return Profile{
		FirstName:  strings.TrimSpace(u.FirstName),
		LastName:   strings.TrimSpace(u.LastName),
		ScreenName: strings.TrimSpace(u.ScreenName),
		Bdate:      strings.TrimSpace(u.Bdate),
		City:       parseCity(u.City),
	}, nil
}

func parseCity(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && strings.TrimSpace(obj.Title) != "" {
		return strings.TrimSpace(obj.Title)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
