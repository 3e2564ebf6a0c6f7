package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jfmyers9/orochi/internal/catalog"
	"github.com/jfmyers9/orochi/internal/config"
	"github.com/jfmyers9/orochi/pkg/eighttracks"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save 8tracks credentials for autologin",
	Long: `Check your 8tracks credentials and save them to the config file.

The credentials are verified against 8tracks before they are saved. With
autologin enabled the shell logs in on start, so liking mixes and
listing your liked mixes work right away.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)

	// Load existing config
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.APIKey == "" {
		fmt.Print("Enter your 8tracks API key: ")
		apiKey, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
		if err := cfg.Set("api_key", apiKey); err != nil {
			return err
		}
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required")
	}

	// Prompt for the username, offering the saved one
	if cfg.Username != "" {
		fmt.Printf("Username [%s]: ", cfg.Username)
	} else {
		fmt.Print("Username: ")
	}
	username, err := reader.ReadString('\n')
	if err != nil && username == "" {
		return fmt.Errorf("failed to read username: %w", err)
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = cfg.Username
	}
	if username == "" {
		return fmt.Errorf("username is required")
	}

	fmt.Print("Password: ")
	password, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}

	// Verify before saving
	client, err := eighttracks.NewClient(eighttracks.Config{
		APIKey:  cfg.APIKey,
		Timeout: time.Duration(cfg.HTTPTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to create 8tracks client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sess, err := catalog.NewEightTracks(client, zerolog.Nop()).Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cfg.Username = sess.Username
	cfg.Password = password
	cfg.Autologin = true
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Printf("\nLogged in as %s.\n", sess.Username)
	fmt.Printf("Credentials saved to %s with autologin enabled.\n", cfg.Path())
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		return string(b), err
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
