package main

import "github.com/oshokin/gas-guard/cmd/gasguard-lambda/cmd"

func main() {
	cmd.Execute()
}
