package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"apibench/internal/banner"
	"apibench/internal/cli"
	"apibench/internal/dummy"
)

var (
	cfgFile string

	// CLI Flags
	requests    int
	userIDRange string
	output      string
	protocols   []string
	operations  []string
	concurrency int
	sequential  bool
	timeout     int
	seed        int64
	verbose     bool
	restURL     string
	grpcURL     string
	graphqlURL  string
)

var rootCmd = &cobra.Command{
	Use:   "apibench",
	Short: "apibench - REST vs gRPC vs GraphQL benchmark harness",
	Long: `
apibench dispatches identical CRUD operations against REST, gRPC and
GraphQL targets, times every call, and reports comparable statistics
(latency percentiles, success rates, throughput, payload efficiency)
per protocol, with a per-metric winner table.`,
	Run: func(cmd *cobra.Command, args []string) {
		opts := cli.Options{
			Requests:    requests,
			UserIDRange: userIDRange,
			Output:      output,
			Protocols:   protocols,
			Operations:  operations,
			Concurrency: concurrency,
			Sequential:  sequential,
			TimeoutSec:  timeout,
			Seed:        seed,
			Verbose:     verbose,
			RESTURL:     restURL,
			GRPCURL:     grpcURL,
			GraphQLURL:  graphqlURL,
		}
		os.Exit(cli.Run(opts))
	},
}

func Execute() {
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(cli.ExitConfigError)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.AddCommand(dummyCmd)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.apibench.yaml)")

	rootCmd.Flags().IntVarP(&requests, "requests", "r", 0, "Requests per (protocol, operation) group (1-10000)")
	rootCmd.Flags().StringVar(&userIDRange, "user-id-range", "1-10000", "User ID range to draw targets from (\"min-max\")")
	rootCmd.Flags().StringVarP(&output, "output", "o", "console", "Output format: console, json or csv")
	rootCmd.Flags().StringSliceVar(&protocols, "protocols", []string{"rest", "grpc", "graphql"}, "Protocols to benchmark")
	rootCmd.Flags().StringSliceVar(&operations, "operations", []string{"getUser"}, "Operations to benchmark")
	rootCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 100, "Worker count for parallel dispatch")
	rootCmd.Flags().BoolVar(&sequential, "sequential", false, "Dispatch calls strictly one at a time")
	rootCmd.Flags().IntVar(&timeout, "timeout", 30, "Per-call timeout in seconds")
	rootCmd.Flags().Int64Var(&seed, "seed", 0, "Seed for the user ID sequence (0 = random)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().StringVar(&restURL, "rest-url", "http://localhost:8080", "REST server base URL")
	rootCmd.Flags().StringVar(&grpcURL, "grpc-url", "localhost:9090", "gRPC server address")
	rootCmd.Flags().StringVar(&graphqlURL, "graphql-url", "http://localhost:8081/graphql", "GraphQL endpoint URL")

	rootCmd.MarkFlagRequired("requests")
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".apibench")
		}
	}
	viper.AutomaticEnv()
	viper.ReadInConfig()
}

// --- Dummy Subcommand ---
var dummyCmd = &cobra.Command{
	Use:   "dummy",
	Short: "Run a local stub target server",
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		dummy.Start(dummy.ServerConfig{Port: port})
		select {}
	},
}

func init() {
	dummyCmd.Flags().IntP("port", "p", 8080, "Port to run the stub target on")
}
