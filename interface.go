package cisco

import (
	"fmt"
	"strings"
)

// ShutdownInterface administratively disables an interface.
func (s *Session) ShutdownInterface(iface string) (string, error) {
	return s.configureInterface(iface, "shutdown")
}

// NoShutdownInterface re-enables an interface.
func (s *Session) NoShutdownInterface(iface string) (string, error) {
	return s.configureInterface(iface, "no shutdown")
}

// SetInterfaceDescription replaces an interface description.
func (s *Session) SetInterfaceDescription(iface, description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return s.configureInterface(iface, "no description")
	}
	return s.configureInterface(iface, fmt.Sprintf("description %s", description))
}

func (s *Session) configureInterface(iface string, lines ...string) (string, error) {
	iface = strings.TrimSpace(iface)
	if iface == "" {
		return "", fmt.Errorf("%s :: interface name is empty", s.target.Address)
	}
	commands := append([]string{fmt.Sprintf("interface %s", iface)}, lines...)

	out, err := s.SendConfigSet(commands)
	if err != nil {
		return out, err
	}
	s.log.Info().Str("host", s.target.Address).Str("interface", iface).
		Msgf("Successfully applied '%s' to interface %s", strings.Join(lines, "; "), iface)
	return out, nil
}
