//go:build mage

package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/joho/godotenv"
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const sampleCase = "./internal/casefile/testdata/caso.yaml"

func dbPath() string {
	if p := os.Getenv("DB_PATH"); p != "" {
		return p
	}
	return "mirecurso.db"
}

// Dbup runs dbmate to apply db migrations against DB_PATH.
func Dbup() error {
	if _, err := exec.LookPath("dbmate"); err != nil {
		fmt.Println(">> dbmate not found; install with:")
		fmt.Println("   go install github.com/amacneil/dbmate/v2@latest")
		return err
	}
	env := map[string]string{}
	if os.Getenv("DATABASE_URL") == "" {
		env["DATABASE_URL"] = "sqlite:" + dbPath()
	}
	fmt.Println(">> dbmate up")
	return sh.RunWith(env, "dbmate", "--migrations-dir", "./db/migrations", "up")
}

// Build tidies deps, then compiles the server and the CLI into ./bin.
func Build() error {
	mg.Deps(Tidy)
	fmt.Println(">> Building server binary...")
	if err := sh.Run("go", "build", "-o", "bin/mirecurso-server", "./cmd/server"); err != nil {
		return err
	}
	fmt.Println(">> Building CLI binary...")
	return sh.Run("go", "build", "-o", "bin/recurso", "./cmd/recurso")
}

// Run builds then executes the server.
func Run() error {
	mg.Deps(Build)
	fmt.Println(">> Starting server on :8080 ...")
	return sh.Run("./bin/mirecurso-server")
}

// Dev starts the server via go run with console logging.
func Dev() error {
	fmt.Println(">> Dev mode: go run ./cmd/server ...")
	cmd := exec.Command("go", "run", "./cmd/server")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), "PORT=8080", "LOG_LEVEL=debug", "LOG_FORMAT=console")
	return cmd.Run()
}

// Sample renders the bundled example case to ./bin/recurso_ejemplo.pdf.
func Sample() error {
	mg.Deps(Build)
	fmt.Println(">> Generating sample document...")
	return sh.Run("./bin/recurso", "generar", sampleCase, "--formato", "pdf", "--salida", "bin/recurso_ejemplo.pdf")
}

// Tidy runs go mod tidy.
func Tidy() error {
	fmt.Println(">> go mod tidy...")
	return sh.Run("go", "mod", "tidy")
}

// Test runs all unit tests with the race detector.
func Test() error {
	fmt.Println(">> Running tests...")
	return sh.Run("go", "test", "-race", "./...")
}

// Lint runs golangci-lint if available.
func Lint() error {
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		fmt.Println(">> golangci-lint not found; skipping.")
		return nil
	}
	return sh.Run("golangci-lint", "run", "./...")
}

// Clean removes build artifacts and the local SQLite DB.
func Clean() error {
	fmt.Println(">> Cleaning...")
	if err := os.RemoveAll("bin"); err != nil {
		return err
	}
	if err := os.Remove(dbPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Install builds and installs both binaries to $GOPATH/bin.
func Install() error {
	mg.Deps(Build)
	return sh.Run("go", "install", "./cmd/server", "./cmd/recurso")
}

func init() {
	err := godotenv.Load()
	if err != nil {
		slog.Warn("error loading .env file", "err", err)
	}
}
