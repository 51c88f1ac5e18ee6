package main

import (
	"flag"
	"log"

	"medshift/core/appbootstrap"
)

func main() {
	configPath := flag.String("config", "medshift.yml", "path to the yaml config file")
	flag.Parse()

	if err := appbootstrap.Run(*configPath); err != nil {
		log.Fatalf("medshift: %v", err)
	}
}
