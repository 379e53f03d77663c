package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/form3tech-oss/sync-pact/internal/app/configuration"
	"github.com/form3tech-oss/sync-pact/internal/app/syncservice"
	log "github.com/sirupsen/logrus"
)

func main() {
	config, err := configuration.NewFromEnv()
	if err != nil {
		log.Fatal(err)
	}

	log.Infof("starting %s on port %d", syncservice.ServiceName, config.Port)
	server := syncservice.Serve(config.Port, syncservice.NewInfo(config), syncservice.NewStates())

	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		panic(err)
	}
}
