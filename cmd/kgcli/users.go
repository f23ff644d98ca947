package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage admin users",
}

var userDisplayName string

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create an admin user; prompts for the password",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return err
		}
		if _, err = usersStorage.Create(args[0], string(password), userDisplayName); err != nil {
			return err
		}
		log.Println("user created")
		return nil
	},
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin users",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		users, err := usersStorage.List()
		if err != nil {
			return err
		}
		for _, u := range users {
			state := ""
			if u.Disabled {
				state = "  (disabled)"
			}
			fmt.Printf("%s%s\n", u.Username, state)
		}
		return nil
	},
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an admin user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := usersStorage.Delete(args[0]); err != nil {
			return err
		}
		log.Println("user deleted")
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVarP(&userDisplayName, "name", "n", "", "display name")
	usersCmd.AddCommand(userAddCmd)
	usersCmd.AddCommand(userListCmd)
	usersCmd.AddCommand(userDeleteCmd)
}
