package main

import (
	devenv "bankcap/dev/env"
	configsqlite "bankcap/lib/configutil/sqlite"
	"fmt"
	"log/slog"
	"net/http"
	"os"
)

const localConfig = `{
  // written by "go run ./dev", keeps generated files out of the repository
  output: { csv: "<dev_state>/output/Largest_banks_data.csv" },
  store: { file: "<dev_state>/Banks.db" },
  progress_log: "<dev_state>/logs/code_log.txt",
  http_dump_dir: "<dev_state>/http",
}
`

const fixtureDir = "internal/extract/testdata"

func WriteLocalConfig() error {
	_, err := os.Stat("config.local.json5")
	if err == nil {
		fmt.Println("config.local.json5 already exists, leaving it alone")
		return nil
	}
	fmt.Println("writing config.local.json5")
	return os.WriteFile("config.local.json5", []byte(localConfig), 0644)
}

func CreateStore() error {
	path, err := devenv.ResolvePath("<dev_state>/Banks.db")
	if err != nil {
		return err
	}

	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("database already created at", path)
		return nil
	}

	fmt.Println("creating database at", path)
	db, err := configsqlite.Struct{File: path}.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Ping()
}

// ServeFixture serves the sample source page so runs can be made offline
// with `bankcap run --url http://<addr>/largest_banks.html`.
func ServeFixture(addr string) error {
	slog.Info("serving sample source page", "url", fmt.Sprintf("http://%s/largest_banks.html", addr))
	return http.ListenAndServe(addr, http.FileServer(http.Dir(fixtureDir)))
}
