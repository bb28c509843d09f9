package main

import "github.com/xdg-go/recjson/cmd/recjson/cmd"

func main() {
	cmd.Execute()
}
