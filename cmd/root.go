package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SisyphusSQ/mongo-top-tool/internal/config"
	"github.com/SisyphusSQ/mongo-top-tool/internal/service"
	l "github.com/SisyphusSQ/mongo-top-tool/pkg/log"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/mongo"
	"github.com/SisyphusSQ/mongo-top-tool/pkg/term"
	"github.com/SisyphusSQ/mongo-top-tool/utils"
	"github.com/SisyphusSQ/mongo-top-tool/vars"
)

var topCfg config.TopConfig

var rootCmd = &cobra.Command{
	Use:     vars.AppName + " [address ...]",
	Version: vars.Version,
	Short:   "Realtime monitoring tool for several MongoDB servers",
	Long:    fmt.Sprintf("%s shows status, replication state and current operations of several MongoDB servers, refreshed every second", vars.AppName),
	Example: fmt.Sprintf("%s db01:27017 db02:27017\n%s -c motop.conf\n", vars.AppName, vars.AppName),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.PreCheck(&topCfg, args); err != nil {
			return err
		}
		return runTop(&topCfg)
	},
}

func runTop(cfg *config.TopConfig) error {
	chosen := make(map[string][]service.Poller)
	connected := 0
	for _, sc := range cfg.Servers {
		uri := cfg.ConcatUri(sc)
		srv, err := mongo.NewServer(sc.Name, sc.Address, uri)
		if err != nil {
			l.Logger.Errorf("connect %s failed: %v", utils.BlockPassword(uri, "***"), err)
			continue
		}
		connected++
		for _, choice := range config.Choices {
			if sc.Choices[choice] {
				chosen[choice] = append(chosen[choice], srv)
			}
		}
	}
	if connected == 0 {
		return fmt.Errorf("no servers available")
	}

	cancelled, stopSignals := utils.SetupSignalHandler()
	defer stopSignals()

	console, err := term.Open()
	if err != nil {
		return err
	}
	defer console.Close()

	topSrv := service.NewTopSrv(context.Background(), cfg, console, chosen, cancelled)
	defer topSrv.Close()
	return topSrv.Run()
}

func registerTopFlags(cmd *cobra.Command, cfg *config.TopConfig) {
	cmd.Flags().BoolVar(&cfg.Debug, "debug", false, "If debug_mode is true, print debug logs")

	cmd.Flags().StringVarP(&cfg.ConfPath, "conf", "c", "", "Configuration file, one section per server")
	cmd.Flags().DurationVar(&cfg.Interval, "interval", time.Second, "Refresh period")

	cmd.Flags().StringVarP(&cfg.Username, "username", "u", "", "Username for authentication")
	cmd.Flags().StringVarP(&cfg.Password, "password", "p", "", "Password for authentication")
	cmd.Flags().StringVar(&cfg.AuthSource, "authSource", "admin", "User source")
}

func initAll() {
	registerTopFlags(rootCmd, &topCfg)
	initVersion()
}

func Execute() {
	initAll()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
