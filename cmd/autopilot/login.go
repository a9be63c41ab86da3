package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fentz26/autopilot/internal/auth"
	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API key for the current --api address",
	Long:  `Stores the key in ~/.autopilot/credentials.json. It is used whenever no --api-key or api_key is given.`,
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored API key for the current --api address",
	RunE:  runLogout,
}

func runLogin(cmd *cobra.Command, args []string) error {
	m, err := auth.NewManager(cfg.Dir)
	if err != nil {
		return err
	}

	key := v.GetString("api_key")
	if key == "" {
		fmt.Printf("API key for %s: ", cfg.APIAddr)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		key = strings.TrimSpace(line)
	}
	if err := m.Login(cfg.APIAddr, key); err != nil {
		return err
	}
	cfg.APIKey = key

	if _, err := newClient().CheckHealth(cmd.Context()); err != nil {
		logger.Warn("saved key but the API is not reachable", "addr", cfg.APIAddr, "error", err)
	}
	fmt.Printf("Saved API key for %s\n", cfg.APIAddr)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	m, err := auth.NewManager(cfg.Dir)
	if err != nil {
		return err
	}
	if err := m.Logout(cfg.APIAddr); err != nil {
		return err
	}
	fmt.Printf("Removed API key for %s\n", cfg.APIAddr)
	return nil
}
