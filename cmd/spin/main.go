package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/itowlson/spin/internal/runtime"
)

func main() {
	status := runtime.Up("127.0.0.1:3000", "examples/hello/spin.toml", "./TEMPYWEMPY", "./LOGGLYWOGGLY")
	fmt.Printf("UP: %d\n", status)
	os.Exit(int(status))
}
