package main

import "github.com/StinkyLord/sbom-evinser/cmd"

func main() {
	cmd.Execute()
}
