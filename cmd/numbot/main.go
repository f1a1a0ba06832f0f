package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/waygroup/numbot/bot"
	"github.com/waygroup/numbot/core/bootstrap"
	"github.com/waygroup/numbot/core/buildinfo"
	corecmd "github.com/waygroup/numbot/core/cmd"
	coreconfig "github.com/waygroup/numbot/core/config"
	coredatabase "github.com/waygroup/numbot/core/database"
)

type configCarrier struct {
	core *coreconfig.Config
}

func (c *configCarrier) CoreConfig() *coreconfig.Config {
	return c.core
}

func main() {
	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(buildinfo.String())
		return
	}

	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return nil, err
			}
			return &configCarrier{core: cfg}, nil
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg := carrier.CoreConfig()

			var dbCfg *coredatabase.Config
			if cfg.Ledger.Enabled {
				dbCfg = &coredatabase.Config{
					Host:           cfg.Ledger.Database.Host,
					Port:           cfg.Ledger.Database.Port,
					User:           cfg.Ledger.Database.User,
					Password:       cfg.Ledger.Database.Password,
					Name:           cfg.Ledger.Database.Name,
					SSLMode:        cfg.Ledger.Database.SSLMode,
					MaxConnections: cfg.Ledger.Database.MaxConnections,
				}
			}

			res, err := bootstrap.Run(bootstrap.Options{
				Config:   cfg,
				Database: dbCfg,
			})
			if err != nil {
				return nil, err
			}
			return bot.New(cfg, res.DB)
		},
	})
	if err != nil {
		log.Fatalf("numbot: %v", err)
	}
}
