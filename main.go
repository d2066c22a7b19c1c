package main

import "github.com/garry/tracklink/cmd"

// Version information - set during build
var version = "dev"

func main() {
	cmd.Execute(version)
}
