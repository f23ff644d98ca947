package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage/model"
)

var licensesCmd = &cobra.Command{
	Use:   "licenses",
	Short: "Manage licenses",
}

var issueDays int
var issueKey string

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a new license and print its key",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		res, err := lifecycle.Issue(
			context.Background(), license.IssueRequest{
				Key:       issueKey,
				DaysValid: issueDays,
				Actor:     "cli",
			},
		)
		if err != nil {
			return err
		}
		fmt.Printf("key:    %s\n", res.Key)
		fmt.Printf("digest: %s\n", res.KeyDigest)
		fmt.Printf("expiry: %s\n", res.Expiry)
		return nil
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke <key-or-digest>",
	Short: "Revoke a license",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		matched, modified, err := lifecycle.Revoke(context.Background(), args[0])
		if err != nil {
			return err
		}
		if modified == 0 {
			log.Printf("license was already revoked (matched %d)", matched)
			return nil
		}
		log.Println("license revoked")
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <key-or-digest>",
	Short: "Clear the device binding of a license",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		if err := lifecycle.ResetBinding(context.Background(), args[0]); err != nil {
			return err
		}
		log.Println("device binding cleared")
		return nil
	},
}

var listLimit int

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List licenses, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}
		lics, total, err := lifecycle.List(
			context.Background(), model.ListOptions{Limit: listLimit},
		)
		if err != nil {
			return err
		}
		for _, lic := range lics {
			state := "unbound"
			if lic.DeviceID != nil {
				state = "bound to " + *lic.DeviceID
			}
			if !lic.Active {
				state = "revoked"
			}
			fmt.Printf("%s  expires %s  %s\n", lic.KeyDigest, lic.ExpiryDate, state)
		}
		fmt.Printf("%d of %d licenses\n", len(lics), total)
		return nil
	},
}

func init() {
	issueCmd.Flags().IntVarP(&issueDays, "days", "d", 365, "validity window in days")
	issueCmd.Flags().StringVarP(&issueKey, "key", "k", "", "register this key instead of generating one")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 50, "maximum number of licenses to print")
	licensesCmd.AddCommand(issueCmd)
	licensesCmd.AddCommand(revokeCmd)
	licensesCmd.AddCommand(resetCmd)
	licensesCmd.AddCommand(listCmd)
}
