package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cisco "github.com/xtokio/cisco-proxy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, logLevel string

	cmd := &cobra.Command{
		Use:          "ciscoproxy",
		Short:        "Run commands on a Cisco IOS switch over a persistent SSH session",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "proxy.toml", "proxy configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default from "+cisco.EnvLogLevel+")")

	open := func() (*cisco.Session, error) {
		logger := cisco.NewLogger(os.Stderr, logLevel)
		cfg, err := cisco.LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		m := cisco.NewManager(cisco.WithManagerLogger(logger))
		ok, err := m.Init(cfg)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errors.New("could not open a session to " + cfg.Proxy.IP)
		}
		session, _ := m.Session()
		return session, nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "send <command>",
			Short: "Send one exec command and print its output",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				session, err := open()
				if err != nil {
					return err
				}
				defer session.Close()
				if _, err := session.Enable(); err != nil {
					return err
				}
				out, err := session.SendCommand(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "config <line>...",
			Short: "Apply configuration lines in configuration mode",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				session, err := open()
				if err != nil {
					return err
				}
				defer session.Close()
				if _, err := session.Enable(); err != nil {
					return err
				}
				out, err := session.SendConfigSet(args)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the parsed 'show version' of the switch",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				session, err := open()
				if err != nil {
					return err
				}
				defer session.Close()
				info, err := session.ShowVersion()
				if err != nil {
					return err
				}
				return printJSON(cmd, info)
			},
		},
		&cobra.Command{
			Use:   "vlans",
			Short: "Print the parsed 'show vlan' of the switch",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				session, err := open()
				if err != nil {
					return err
				}
				defer session.Close()
				vlans, err := session.ShowVlan()
				if err != nil {
					return err
				}
				return printJSON(cmd, vlans)
			},
		},
	)
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
