package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/greenart7c3/Citrine-sub000/app"
	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore"
	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore/badgerstore"
	"github.com/greenart7c3/Citrine-sub000/pkg/eventstore/memory"
)

const configFileName = "config.json"

func main() {
	conf := &app.Config{}
	arg.MustParse(conf)

	level, err := zerolog.ParseLevel(conf.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	dir, err := conf.ProfileDir()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot prepare profile directory")
	}
	configPath := filepath.Join(dir, configFileName)

	if conf.InitCfg != nil {
		if err := conf.Save(configPath); err != nil {
			log.Fatal().Err(err).Msg("cannot save configuration")
		}
		return
	}
	if err := conf.Load(configPath); err != nil {
		log.Fatal().Err(err).Msg("cannot load configuration")
	}

	store, err := openStore(conf, dir)
	if err != nil {
		log.Fatal().Err(err).Str("eventstore", conf.EventStore).
			Msg("cannot open event store")
	}

	if conf.Wipe != nil {
		defer store.Close()
		wiper, ok := store.(eventstore.Wiper)
		if !ok {
			log.Fatal().Str("eventstore", conf.EventStore).
				Msg("store does not support wiping")
		}
		if err := wiper.Wipe(); err != nil {
			log.Fatal().Err(err).Msg("cannot wipe event store")
		}
		log.Info().Msg("event store wiped")
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rl := app.NewRelay(ctx, cancel, conf, store)
	if err := rl.Start(); err != nil {
		log.Fatal().Err(err).Msg("relay stopped")
	}
}

func openStore(conf *app.Config, dir string) (eventstore.Store, error) {
	var store eventstore.Store
	switch conf.EventStore {
	case "badger":
		store = &badgerstore.Store{
			Path:     filepath.Join(dir, "events"),
			MaxLimit: conf.MaxLimit,
		}
	case "memory":
		store = &memory.Store{MaxLimit: conf.MaxLimit}
	default:
		return nil, fmt.Errorf("unknown event store %q", conf.EventStore)
	}
	if err := store.Init(); err != nil {
		return nil, err
	}
	return store, nil
}
