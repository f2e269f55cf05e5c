package main

import (
	"github.com/pacoapp/tesp/cmd"
)

func main() {
	cmd.Execute()
}
