package terraform

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// State mirrors the subset of terraform's version-4 state snapshot the
// pipeline consumes.
type State struct {
	Version          int        `json:"version"`
	TerraformVersion string     `json:"terraform_version"`
	Serial           int        `json:"serial"`
	Lineage          string     `json:"lineage"`
	Resources        []Resource `json:"resources"`
}

// Resource is one managed resource record in the state.
type Resource struct {
	Mode      string     `json:"mode"`
	Type      string     `json:"type"`
	Name      string     `json:"name"`
	Provider  string     `json:"provider"`
	Instances []Instance `json:"instances"`
}

// Instance is one concrete instance of a resource.
type Instance struct {
	SchemaVersion int            `json:"schema_version"`
	Attributes    map[string]any `json:"attributes"`
}

// LoadState parses a terraform state snapshot. A missing file yields an
// empty state, not an error; callers treat an empty result as fatal.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", path, err)
	}

	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", path, err)
	}
	return &s, nil
}

// PublicAddresses returns every aws_instance public IP in the state,
// deduplicated and sorted.
func (s *State) PublicAddresses() []string {
	seen := make(map[string]bool)
	for _, res := range s.Resources {
		if res.Type != "aws_instance" {
			continue
		}
		for _, inst := range res.Instances {
			ip, ok := inst.Attributes["public_ip"].(string)
			if ok && ip != "" {
				seen[ip] = true
			}
		}
	}

	addrs := make([]string, 0, len(seen))
	for ip := range seen {
		addrs = append(addrs, ip)
	}
	sort.Strings(addrs)
	return addrs
}

// KeyFilePath returns the key-file reference carried in the Key tag of the
// first aws_key_pair resource, or "" when the state holds none.
func (s *State) KeyFilePath() string {
	for _, res := range s.Resources {
		if res.Type != "aws_key_pair" {
			continue
		}
		for _, inst := range res.Instances {
			tags, ok := inst.Attributes["tags"].(map[string]any)
			if !ok {
				continue
			}
			if key, ok := tags["Key"].(string); ok && key != "" {
				return key
			}
		}
	}
	return ""
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
