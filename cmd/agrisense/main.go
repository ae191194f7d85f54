// Command agrisense scores crop seasons against NASA POWER climate data.
//
// Usage:
//
//	agrisense crops
//	agrisense climate [--lat 23.81 --lon 90.41]
//	agrisense simulate --crop Rice --irrigation 1200 --fertilizer 100
//	agrisense serve
//
// Service settings come from the environment (HTTP_ADDR, POWER_BASE_URL,
// KAFKA_ENABLED, ...). CLI flags may also be set as AGRISENSE_<FLAG>.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "agrisense",
	Short: "Crop yield and sustainability simulator",
	Long: `agrisense estimates seasonal crop yield (tons/hectare) and a 0-100
sustainability score from a crop choice, irrigation and fertilizer amounts,
and average rainfall and temperature observed at the farm over the last
observation window. Climate comes from the NASA POWER daily point API; when it
is unavailable fixed fallback averages are used instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("AGRISENSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Float64("lat", 0, "latitude (defaults to FARM_LATITUDE)")
	rootCmd.PersistentFlags().Float64("lon", 0, "longitude (defaults to FARM_LONGITUDE)")
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("lat", rootCmd.PersistentFlags().Lookup("lat"))
	_ = viper.BindPFlag("lon", rootCmd.PersistentFlags().Lookup("lon"))
}

func registerCommands() {
	rootCmd.AddCommand(cropsCmd(), climateCmd(), simulateCmd(), serveCmd())
}
