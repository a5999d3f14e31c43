package cisco

import (
	"regexp"
	"strings"
)

// MacAddressEntry is one row of the MAC address table.
type MacAddressEntry struct {
	Interface  string
	MacAddress string
	VlanID     string
	Type       string // DYNAMIC, STATIC, SECURE...
}

// ShowMacAddressTable runs "show mac address-table". CPU entries are skipped.
func (s *Session) ShowMacAddressTable() ([]MacAddressEntry, error) {
	out, err := s.SendCommand("show mac address-table")
	if err != nil {
		return nil, err
	}
	return parseMacAddressTable(out), nil
}

var macEntryPattern = regexp.MustCompile(`^\*?\s*(\d+)\s+([0-9a-fA-F]{4}\.[0-9a-fA-F]{4}\.[0-9a-fA-F]{4})\s+(\w+)(?:\s+[\w\-]+)*?\s+(\S+)$`)

func parseMacAddressTable(rawOutput string) []MacAddressEntry {
	var entries []MacAddressEntry
	for _, line := range strings.Split(rawOutput, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "CPU") {
			continue
		}
		m := macEntryPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		entries = append(entries, MacAddressEntry{
			VlanID:     m[1],
			MacAddress: strings.ToLower(m[2]),
			Type:       strings.ToUpper(m[3]),
			Interface:  normalizeInterfaceName(m[4]),
		})
	}
	return entries
}
