package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/wesm/jira-issue-digest/config"
	"golang.org/x/term"
)

var loginUser string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a Jira API token in the OS keychain",
	Long: `Store a static Jira credential in the OS keychain, keyed by jira_base_url.

It is used whenever the configuration file has an empty "auth" list.
With --user the token is sent as basic auth, otherwise as a bearer token.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		token, err := readToken()
		if err != nil {
			return err
		}
		if err := config.StoreCredential(cfg.JiraBaseURL, loginUser, token); err != nil {
			return err
		}
		log.Infof("Stored credential for %s in the OS keychain", cfg.JiraBaseURL)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored Jira credential from the OS keychain",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := config.DeleteCredential(cfg.JiraBaseURL); err != nil {
			return err
		}
		log.Infof("Removed credential for %s", cfg.JiraBaseURL)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUser, "user", "u", "", "Jira user name for basic auth")
}

// readToken prompts without echo on a terminal and reads a line from stdin otherwise
func readToken() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "API token: ")
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("no token provided on stdin")
	}
	return strings.TrimSpace(line), nil
}
