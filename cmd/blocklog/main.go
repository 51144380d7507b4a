package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/blocklog/pkg/client"
)

// version is overridden via -ldflags "-X main.version=...".
var version = "dev"

const defaultNodeURL = "http://localhost:8080"

var (
	nodeURL  string
	cfgFile  string
	tokenArg string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "blocklog",
	Short: "blocklog ledger CLI",
	Long: `blocklog is the command-line interface for a blocklog node.

It appends attributed log entries, mines or seals blocks, and inspects and
validates the hash-chained ledger the node keeps.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.blocklog")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.SetEnvPrefix("blocklog")
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if nodeURL == "" {
			nodeURL = viper.GetString("node_url")
		}
		if nodeURL == "" {
			nodeURL = defaultNodeURL
		}
		if tokenArg == "" {
			tokenArg = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.blocklog/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&nodeURL, "node", "", "blocklog node URL (default "+defaultNodeURL+")")
	rootCmd.PersistentFlags().StringVar(&tokenArg, "token", "", "writer token for nodes that require one")

	rootCmd.AddCommand(appendCmd)
	rootCmd.AddCommand(mineCmd)
	rootCmd.AddCommand(sealCmd)
	rootCmd.AddCommand(chainCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pendingCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(versionCmd)
}

// newClient builds an SDK client from the resolved node URL and token.
func newClient() (*client.Client, error) {
	var opts []client.Option
	if tokenArg != "" {
		opts = append(opts, client.WithBearerToken(tokenArg))
	}
	return client.New(nodeURL, opts...)
}

// ── version ──────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the CLI version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blocklog %s\n", version)
	},
}
