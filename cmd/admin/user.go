package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamscao/protocolreg/internal/app"
	"github.com/adamscao/protocolreg/internal/models"
	"github.com/adamscao/protocolreg/internal/registry"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE:  createUser,
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	RunE:  listUsers,
}

var userPasswdCmd = &cobra.Command{
	Use:   "passwd <login>",
	Short: "Set a user's password",
	Args:  cobra.ExactArgs(1),
	RunE:  setPassword,
}

var userDisableCmd = &cobra.Command{
	Use:   "disable <login>",
	Short: "Deactivate a user account",
	Args:  cobra.ExactArgs(1),
	RunE:  disableUser,
}

var (
	login       string
	password    string
	displayName string
	email       string
	role        string
	withTOTP    bool
)

func init() {
	userCreateCmd.Flags().StringVarP(&login, "login", "l", "", "Login (required)")
	userCreateCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	userCreateCmd.Flags().StringVarP(&displayName, "name", "n", "", "Display name (required)")
	userCreateCmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	userCreateCmd.Flags().StringVarP(&role, "role", "r", string(models.RoleUser), "Role: admin or user")
	userCreateCmd.Flags().BoolVar(&withTOTP, "totp", false, "Enroll a TOTP second factor")

	userCreateCmd.MarkFlagRequired("login")
	userCreateCmd.MarkFlagRequired("password")
	userCreateCmd.MarkFlagRequired("name")

	userPasswdCmd.Flags().StringVarP(&password, "password", "p", "", "New password (required)")
	userPasswdCmd.MarkFlagRequired("password")

	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userDisableCmd)
}

func createUser(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.Registry.Identity.Create(ctx, cliActor(), models.NewUser{
		Login:       login,
		Password:    password,
		DisplayName: displayName,
		Email:       email,
		Role:        models.Role(role),
	})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}

	fmt.Printf("\nUser created successfully!\n")
	fmt.Printf("User ID: %d\n", user.ID)
	fmt.Printf("Login: %s\n", user.Login)
	fmt.Printf("Role: %s\n", user.Role)

	if withTOTP {
		url, err := a.Registry.Identity.EnableTOTP(ctx, cliActor(), user.ID)
		if err != nil {
			return fmt.Errorf("user created but TOTP enrollment failed: %w", err)
		}
		fmt.Printf("\nTOTP URL: %s\n", url)
		fmt.Printf("Scan the URL with a TOTP app (Google Authenticator, Authy, etc.)\n")
	}

	return nil
}

func listUsers(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := a.Registry.Identity.List(ctx, cliActor())
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	if len(users) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("\nTotal users: %d\n\n", len(users))
	fmt.Printf("%-5s %-20s %-25s %-6s %-7s %-5s %s\n", "ID", "Login", "Name", "Role", "Active", "TOTP", "Last login")
	fmt.Println("--------------------------------------------------------------------------------------------")

	for _, user := range users {
		fmt.Printf("%-5d %-20s %-25s %-6s %-7s %-5s %s\n",
			user.ID,
			user.Login,
			user.DisplayName,
			user.Role,
			yesNo(user.Active),
			yesNo(user.TOTPEnabled()),
			formatTime(user.LastLoginAt),
		)
	}

	return nil
}

func setPassword(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := findUser(ctx, a, args[0])
	if err != nil {
		return err
	}
	if err := a.Registry.Identity.SetPassword(ctx, cliActor(), user.ID, password); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}

	fmt.Printf("Password updated for %s\n", user.Login)
	return nil
}

func disableUser(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := findUser(ctx, a, args[0])
	if err != nil {
		return err
	}
	_, err = a.Registry.Identity.Update(ctx, cliActor(), user.ID, models.UserUpdate{
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		Active:      false,
	})
	if err != nil {
		return fmt.Errorf("failed to disable user: %w", err)
	}

	fmt.Printf("User %s disabled\n", user.Login)
	return nil
}

func findUser(ctx context.Context, a *app.App, login string) (*models.User, error) {
	users, err := a.Registry.Identity.List(ctx, cliActor())
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		if u.Login == login {
			return u, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", login, registry.ErrNotFound)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
