package main

import (
	"os"

	"github.com/kotoba-ai/kotoba-assistant/assistantservice"
)

func main() {
	if err := assistantservice.Run(); err != nil {
		os.Exit(1)
	}
}
