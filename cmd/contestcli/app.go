package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/programme-lv/contest-client/api"
	"github.com/programme-lv/contest-client/conf"
	"github.com/programme-lv/contest-client/logger"
)

type app struct {
	cfgPath string
	apiURL  string
	classID string

	cfg    *conf.Config
	log    *slog.Logger
	client *api.Client
	out    io.Writer
}

func (a *app) load() error {
	if a.cfgPath == "" {
		p, err := conf.DefaultPath()
		if err != nil {
			return err
		}
		a.cfgPath = p
	}
	cfg, err := conf.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid --api-url: %w", err)
		}
	}
	if a.classID == "" {
		a.classID = cfg.ClassID
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	a.cfg = cfg
	a.log = log
	a.client = api.New(cfg.APIURL,
		api.WithToken(cfg.Token),
		api.WithCaseTTL(cfg.CaseCacheTTL.Duration),
		api.WithLogger(log.With("module", "api")))
	return nil
}

// saveToken persists the token of the current client to the config file
func (a *app) saveToken() error {
	a.cfg.Token = a.client.Token()
	return conf.SaveToken(a.cfgPath, a.cfg.Token)
}
