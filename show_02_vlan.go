package cisco

import (
	"fmt"
	"regexp"
	"strings"
)

// VlanInfo is one row of "show vlan".
type VlanInfo struct {
	VLANID   string
	VLANName string
	Status   string
	Ports    []string
}

// ShowVlan runs "show vlan" and parses the VLAN table.
func (s *Session) ShowVlan() ([]VlanInfo, error) {
	out, err := s.SendCommand("show vlan")
	if err != nil {
		return nil, err
	}
	vlans, err := parseVlanInfo(out)
	if err != nil {
		s.log.Warn().Err(err).Str("host", s.target.Address).Msg("show vlan: parse failed")
		return nil, err
	}
	return vlans, nil
}

var vlanRowPattern = regexp.MustCompile(`^\d`)

// parseVlanInfo reads the first table of "show vlan"; port lists may wrap
// onto continuation lines.
func parseVlanInfo(rawOutput string) ([]VlanInfo, error) {
	lines := strings.Split(rawOutput, "\n")

	start := -1
	for i, line := range lines {
		if strings.HasPrefix(line, "VLAN Name") {
			start = i + 2 // header and "----" separator
			break
		}
	}
	if start == -1 {
		return nil, fmt.Errorf("could not find VLAN header in output")
	}

	var vlans []VlanInfo
	for _, line := range lines[min(start, len(lines)):] {
		line = strings.TrimRight(line, "\r")
		// the second table ("VLAN Type SAID ...") is not parsed
		if strings.HasPrefix(line, "VLAN Type") {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		if vlanRowPattern.MatchString(line) {
			fields := strings.Fields(line)
			if len(fields) < 3 {
				continue
			}
			vlans = append(vlans, VlanInfo{
				VLANID:   fields[0],
				VLANName: fields[1],
				Status:   fields[2],
				Ports:    splitPorts(strings.Join(fields[3:], "")),
			})
		} else if len(vlans) > 0 {
			last := &vlans[len(vlans)-1]
			last.Ports = append(last.Ports, splitPorts(line)...)
		}
	}
	return vlans, nil
}

func splitPorts(s string) []string {
	ports := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ports = append(ports, normalizeInterfaceName(p))
		}
	}
	return ports
}
