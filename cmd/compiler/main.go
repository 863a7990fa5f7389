package main

import (
	"errors"
	"log"
	"os"

	"github.com/ExiledOfCode/Sysc-compiler/pkg/driver"
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("compiler: ")

	opts, err := driver.ParseArgs(os.Args[1:])
	if err != nil {
		log.Print(err)
		log.Print(driver.Usage)
		os.Exit(1)
	}
	opts.Stdin = os.Stdin

	code, err := driver.Execute(opts)
	if err != nil {
		if errors.Is(err, driver.ErrFileIO) {
			log.Printf("I/O error: %v", err)
		} else {
			log.Print(err)
		}
		os.Exit(1)
	}
	os.Exit(code)
}
