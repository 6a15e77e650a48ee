package main

import (
	"os"

	voxtapcmder "github.com/papercomputeco/voxtap/cmd/voxtap"
)

func main() {
	cmd := voxtapcmder.NewVoxtapCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
