package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Profile is a declarative seeding plan loaded from a YAML file, e.g.:
//
//	users: 50
//	conversations: 80
//	messages_per_conversation: 20
//	group_ratio_percent: 25
//	clean: true
type Profile struct {
	Users           int  `yaml:"users"`
	Conversations   int  `yaml:"conversations"`
	MessagesPerConv int  `yaml:"messages_per_conversation"`
	GroupRatio      int  `yaml:"group_ratio_percent"`
	Clean           bool `yaml:"clean"`
	SkipBcrypt      bool `yaml:"skip_bcrypt"`
	MaxHoursBack    int  `yaml:"max_hours_back"`
}

// LoadProfile reads a seeding profile from the given YAML file.
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}
	return &p, nil
}

// Options converts the profile to seeder options.
func (p *Profile) Options() Options {
	return Options{
		NumUsers:          p.Users,
		NumConversations:  p.Conversations,
		MessagesPerConv:   p.MessagesPerConv,
		GroupRatioPercent: p.GroupRatio,
		ShouldClean:       p.Clean,
		SkipBcrypt:        p.SkipBcrypt,
		MaxHoursBack:      p.MaxHoursBack,
	}
}
