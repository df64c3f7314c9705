package main

import "github.com/openconf/regdesk/cmd/regdesk/cmd"

func main() {
	cmd.Execute()
}
