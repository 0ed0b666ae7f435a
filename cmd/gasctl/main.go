package main

import "github.com/oshokin/gas-guard/cmd/gasctl/cmd"

func main() {
	cmd.Execute()
}
