package main

import (
	"github.com/Ajit127639/VideoCall/cmd"
	"github.com/Ajit127639/VideoCall/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
