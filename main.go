package main

import (
	"github.com/iksnae/chat-recorder/cmd"

	_ "github.com/iksnae/chat-recorder/internal/adapters/all"
)

func main() {
	cmd.Execute()
}
