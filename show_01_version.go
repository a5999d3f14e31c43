package cisco

import (
	"fmt"
	"regexp"
	"strings"
)

// VersionInfo holds the parsed "show version" output.
type VersionInfo struct {
	Hardware      string
	Version       string
	Release       string
	SoftwareImage string
	SerialNumber  string
	Uptime        string
	ReloadReason  string
	Rommon        string
}

// ShowVersion runs "show version" on the switch and parses it.
func (s *Session) ShowVersion() (VersionInfo, error) {
	out, err := s.SendCommand("show version")
	if err != nil {
		return VersionInfo{}, err
	}
	info, err := parseVersionInfo(out)
	if err != nil {
		return VersionInfo{}, fmt.Errorf("error parsing 'show version' output for %s: %w", s.target.Address, err)
	}
	return info, nil
}

var versionPatterns = []struct {
	re    *regexp.Regexp
	field func(*VersionInfo) *string
}{
	{
		regexp.MustCompile(`(?i)cisco ([\w-]+[a-z\d\-]+) .* processor|cisco (Nexus\S+ [\w-]+ Chassis)|cisco ([\w-]+ Chassis)`),
		func(v *VersionInfo) *string { return &v.Hardware },
	},
	{
		regexp.MustCompile(`(?i)Version ([^,\s]+),|NXOS:\s*version\s*(\S+)|system:\s*version\s*(\S+)`),
		func(v *VersionInfo) *string { return &v.Version },
	},
	{
		regexp.MustCompile(`(?i)Version [^,]+, (RELEASE SOFTWARE .*)`),
		func(v *VersionInfo) *string { return &v.Release },
	},
	{
		regexp.MustCompile(`(?i)System image file is "([^"]+)"|NXOS image file is:\s*(\S+)`),
		func(v *VersionInfo) *string { return &v.SoftwareImage },
	},
	{
		regexp.MustCompile(`(?i)System serial number\s*:\s*(\S+)|Processor board ID\s*(\S+)`),
		func(v *VersionInfo) *string { return &v.SerialNumber },
	},
	{
		regexp.MustCompile(`(?i)uptime is (.+)|Kernel uptime is (.+)`),
		func(v *VersionInfo) *string { return &v.Uptime },
	},
	{
		regexp.MustCompile(`(?i)Last reload reason: (.*)|System returned to ROM by (.*)`),
		func(v *VersionInfo) *string { return &v.ReloadReason },
	},
	{
		regexp.MustCompile(`(?i)^ROM: (.*)|BIOS:\s*version\s*(\S+)`),
		func(v *VersionInfo) *string { return &v.Rommon },
	},
}

// parseVersionInfo keeps the first non-empty capture of each pattern.
func parseVersionInfo(rawOutput string) (VersionInfo, error) {
	var info VersionInfo
	for _, line := range strings.Split(rawOutput, "\n") {
		line = strings.TrimSpace(line)
		for _, p := range versionPatterns {
			dst := p.field(&info)
			if *dst != "" {
				continue
			}
			m := p.re.FindStringSubmatch(line)
			for j := 1; j < len(m); j++ {
				if v := strings.TrimSpace(m[j]); v != "" {
					*dst = v
					break
				}
			}
		}
	}

	if info.Version == "" || info.SerialNumber == "" {
		return VersionInfo{}, fmt.Errorf("could not parse essential version info from output")
	}
	return info, nil
}
