package main

import (
	"log"

	"github.com/spf13/cobra"

	"github.com/thinkzone/keygate/cmd/keygate/config"
	"github.com/thinkzone/keygate/license"
	"github.com/thinkzone/keygate/storage/model"
)

var rootCmd = &cobra.Command{
	Use:   "kgcli",
	Short: "kgcli manages licenses and admin users of a keygate instance",
	Long:  "kgcli manages licenses and admin users of a keygate instance",
}

var configFile string
var lifecycle *license.Lifecycle
var usersStorage model.UsersStore

func loadConfig() error {
	config.Load(configFile)
	log.Println("Loaded Config")
	c := config.Get()

	backs, err := config.LoadStorageBackends(c.Storage, c.API.Admin.Argon2idParams)
	if err != nil {
		log.Fatal(err)
	}
	lifecycle = license.NewLifecycle(backs.Licenses, backs.Events)
	if c.Licensing.KeyPrefix != "" {
		lifecycle.KeyPrefix = c.Licensing.KeyPrefix
	}
	usersStorage = backs.Users
	return nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config.yaml", "the config file to use")
	rootCmd.AddCommand(licensesCmd)
	rootCmd.AddCommand(usersCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
