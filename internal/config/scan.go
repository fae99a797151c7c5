package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfileFileInfo represents a profileFileInfo.
type ProfileFileInfo struct {
	Filename string `json:"filename"`
	Name     string `json:"name"`
}

type profileFilePayload struct {
	ProfileConfig ProfileConfig `yaml:"profile_config"`
}

// ScanProfiles executes the scanProfiles function.
func ScanProfiles(rootDir string, profilesDir string) ([]ProfileFileInfo, error) {
	profiles := []ProfileFileInfo{}
	defaultProfile, err := ReadProfileConfig(filepath.Join(rootDir, "conf.yaml"))
	if err == nil && defaultProfile.ProfileName != "" {
		profiles = append(profiles, ProfileFileInfo{Filename: "conf.yaml", Name: defaultProfile.ProfileName})
	} else {
		profiles = append(profiles, ProfileFileInfo{Filename: "conf.yaml", Name: "conf.yaml"})
	}

	if profilesDir == "" {
		return profiles, nil
	}

	_ = filepath.WalkDir(profilesDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil || d == nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !strings.HasSuffix(d.Name(), ".yaml") {
			return nil
		}
		profile, err := ReadProfileConfig(path)
		name := d.Name()
		if err == nil && profile.ProfileName != "" {
			name = profile.ProfileName
		}
		profiles = append(profiles, ProfileFileInfo{Filename: d.Name(), Name: name})
		return nil
	})

	return profiles, nil
}

// ReadProfileConfig executes the readProfileConfig function.
func ReadProfileConfig(path string) (ProfileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ProfileConfig{}, err
	}
	var payload profileFilePayload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return ProfileConfig{}, err
	}
	if payload.ProfileConfig.ProfileName == "" {
		payload.ProfileConfig.ProfileName = filepath.Base(path)
	}
	return payload.ProfileConfig, nil
}
