package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
)

func create(recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll("dev/.state")
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	err = os.MkdirAll("dev/.state", 0777)
	if err != nil && !os.IsExist(err) {
		return err
	}

	err = WriteLocalConfig()
	if err != nil {
		return err
	}
	return CreateStore()
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	serve := flag.String("serve", "", "serve the sample source page on this address after setup, ex. localhost:8080")
	flag.Parse()

	err := create(*recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}
	slog.Info("dev environment created sucessfully!")

	if *serve != "" {
		err = ServeFixture(*serve)
		if err != nil {
			slog.Error("fixture server stopped", "err", err.Error())
			os.Exit(1)
		}
	}
}
