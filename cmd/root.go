package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"esg-sync/cmd/sync"
	"esg-sync/cmd/version"
)

var cfgFile string

const (
	CFG_FLAG_NAME = "config"
)

var RootCmd = &cobra.Command{
	Use:   "esg-sync",
	Short: "esg-sync pulls HR and Finance data into the ESG compliance platform",
	Long: `esg-sync is the external system synchronization pipeline of the ESG
compliance platform. It fetches records from configured HR and Finance
connectors, reconciles them against internally edited data, and produces a
fully auditable outcome per run.`,
}

func SetVersionInfo(v, c, d, b string) {
	version.SetVersionInfo(v, c, d, b)
}

func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&cfgFile, CFG_FLAG_NAME, "c", "", "path to config file")

	viper.BindPFlag(CFG_FLAG_NAME, RootCmd.PersistentFlags().Lookup(CFG_FLAG_NAME))
	viper.SetConfigName(cfgFile)
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("esg_sync")
	viper.AddConfigPath(".")               // For running from project root
	viper.AddConfigPath("/etc/esg-sync/")  // For production
	viper.AddConfigPath("$HOME/.esg-sync") // For user-specific config

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	RootCmd.AddCommand(sync.SyncCmd)
	RootCmd.AddCommand(version.VersionCmd)
}
