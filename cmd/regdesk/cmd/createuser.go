package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/openconf/regdesk/auth"
	"github.com/openconf/regdesk/config"
	"github.com/openconf/regdesk/storage"
)

var (
	userEmail string
	userRole  string
	userName  string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an admin or developer account",
	Long: `Creates an account directly in the configured storage backend.
The password is prompted interactively and never echoed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.ToLower(strings.TrimSpace(userEmail))
		if email == "" {
			return errors.New("--email is required")
		}
		role := auth.Role(userRole)
		if !role.Valid() {
			return fmt.Errorf("invalid role %q", userRole)
		}

		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		if len(password) < 8 {
			return errors.New("password must be at least 8 characters")
		}

		cfg := config.FromEnv()
		repo, err := openRepository(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer repo.Close()

		cred, err := auth.HashPassword(string(password))
		if err != nil {
			return err
		}

		user := &storage.User{
			ID:           uuid.NewString(),
			Email:        email,
			PasswordHash: cred.Hash,
			PasswordSalt: cred.Salt,
			Role:         role,
			Name:         strings.TrimSpace(userName),
			CreatedAt:    time.Now().UTC(),
		}
		if err := repo.Users().Create(cmd.Context(), user); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return fmt.Errorf("account %s already exists", email)
			}
			return err
		}

		fmt.Printf("Created %s account %s (%s)\n", role, email, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(createUserCmd)
	createUserCmd.Flags().StringVar(&userEmail, "email", "", "Account email address")
	createUserCmd.Flags().StringVar(&userRole, "role", "admin", "Account role: participant, admin or developer")
	createUserCmd.Flags().StringVar(&userName, "name", "", "Display name")
}
