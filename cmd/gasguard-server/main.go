package main

import "github.com/oshokin/gas-guard/cmd/gasguard-server/cmd"

func main() {
	cmd.Execute()
}
