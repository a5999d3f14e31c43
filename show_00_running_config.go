package cisco

import (
	"fmt"
	"regexp"
	"strings"
)

// InterfaceConfig is the configuration block of one interface.
type InterfaceConfig struct {
	Interface   string
	ConfigLines []string
}

// InterfaceConfigs runs "show running-config" and returns the interface blocks.
func (s *Session) InterfaceConfigs() ([]InterfaceConfig, error) {
	out, err := s.SendCommand("show running-config")
	if err != nil {
		return nil, err
	}
	configs, err := parseInterfaceConfig(out)
	if err != nil {
		return nil, fmt.Errorf("%s :: show running-config :: %w", s.target.Address, err)
	}
	for i := range configs {
		configs[i].Interface = normalizeInterfaceName(configs[i].Interface)
	}
	return configs, nil
}

var interfaceStartPattern = regexp.MustCompile(`^interface\s+(\S+)$`)

func parseInterfaceConfig(rawOutput string) ([]InterfaceConfig, error) {
	var configs []InterfaceConfig
	var current *InterfaceConfig

	for _, raw := range strings.Split(rawOutput, "\n") {
		indented := strings.HasPrefix(raw, " ")
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		// "!" closes a block, as does any unindented global line
		if strings.HasPrefix(line, "!") || (!indented && !interfaceStartPattern.MatchString(line)) {
			if current != nil {
				configs = append(configs, *current)
				current = nil
			}
			continue
		}

		if m := interfaceStartPattern.FindStringSubmatch(line); m != nil {
			if current != nil {
				configs = append(configs, *current)
			}
			current = &InterfaceConfig{Interface: m[1], ConfigLines: []string{line}}
			continue
		}
		if current != nil {
			current.ConfigLines = append(current.ConfigLines, line)
		}
	}
	if current != nil {
		configs = append(configs, *current)
	}

	if len(configs) == 0 {
		return nil, fmt.Errorf("no interface configurations found")
	}
	return configs, nil
}

// normalizeInterfaceName shortens interface names to a standard format.
func normalizeInterfaceName(name string) string {
	name = strings.ReplaceAll(name, " ", "")
	replacer := strings.NewReplacer(
		"AppGigabitEthernet", "Ap",
		"FastEthernet", "Fa",
		"GigabitEthernet", "Gi",
		"FiveGigabitEthernet", "Fi",
		"TenGigabitEthernet", "Te",
		"TwentyFiveGigE", "Twe",
		"FortyGigabitEthernet", "Fo",
		"HundredGigE", "Hu",
	)
	return replacer.Replace(name)
}
