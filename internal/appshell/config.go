// Package appshell loads the mobile shell configuration: deep links, push
// presentation and the permission prompts shown by the OS.
package appshell

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppID     string      `yaml:"app_id" json:"appId"`
	AppName   string      `yaml:"app_name" json:"appName"`
	Version   string      `yaml:"version" json:"version"`
	DeepLinks DeepLinks   `yaml:"deep_links" json:"deepLinks"`
	Push      Push        `yaml:"push" json:"push"`
	Perms     Permissions `yaml:"permissions" json:"permissions"`
}

type DeepLinks struct {
	Schemes           []string          `yaml:"schemes" json:"schemes"`
	AssociatedDomains []string          `yaml:"associated_domains" json:"associatedDomains"`
	Routes            map[string]string `yaml:"routes" json:"routes"`
}

// Push lists how notifications are presented while the app is foregrounded.
type Push struct {
	Badge bool `yaml:"badge" json:"badge"`
	Sound bool `yaml:"sound" json:"sound"`
	Alert bool `yaml:"alert" json:"alert"`
}

type Permissions struct {
	Camera        string `yaml:"camera" json:"camera"`
	Photos        string `yaml:"photos" json:"photos"`
	Location      string `yaml:"location" json:"location"`
	Notifications string `yaml:"notifications" json:"notifications"`
	Microphone    string `yaml:"microphone" json:"microphone"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read app shell config: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse app shell config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var problems []string

	if c.AppID == "" {
		problems = append(problems, "app_id is required")
	}
	if len(c.DeepLinks.Schemes) == 0 {
		problems = append(problems, "deep_links.schemes must not be empty")
	}
	for _, s := range c.DeepLinks.Schemes {
		if strings.TrimSpace(s) == "" || strings.Contains(s, "://") {
			problems = append(problems, fmt.Sprintf("deep_links.schemes: invalid scheme %q", s))
		}
	}
	for route, target := range c.DeepLinks.Routes {
		if !strings.HasPrefix(route, "/") || target == "" {
			problems = append(problems, fmt.Sprintf("deep_links.routes: invalid route %q", route))
		}
	}

	perms := map[string]string{
		"camera":        c.Perms.Camera,
		"photos":        c.Perms.Photos,
		"location":      c.Perms.Location,
		"notifications": c.Perms.Notifications,
		"microphone":    c.Perms.Microphone,
	}
	for _, name := range []string{"camera", "photos", "location", "notifications", "microphone"} {
		if strings.TrimSpace(perms[name]) == "" {
			problems = append(problems, "permissions."+name+" must not be empty")
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid app shell config: %s", strings.Join(problems, "; "))
	}
	return nil
}
