package main

import (
	"log"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.New(os.Stderr, "", 0).Fatal(err)
	}
}
