package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/catalystschool/checkout/app/repository"
	"github.com/catalystschool/checkout/internal/pkg/database"
	"github.com/catalystschool/checkout/internal/pkg/env"
	"github.com/catalystschool/checkout/internal/pkg/mainapp"
	"github.com/catalystschool/checkout/internal/pkg/syncqueue"
)

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	repository.InitializeFactory(database.GetDB())

	repo := repository.GetGlobalFactory().GetSyncRetryRepository()
	worker := syncqueue.NewWorker(repo, mainapp.NewClientFromEnv())
	worker.Start()
	log.Println("sync worker running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("shutting down sync worker")
	worker.Stop()
}
