package main

import "github.com/oshokin/safety-tracker/cmd/safety-monitor/cmd"

func main() {
	cmd.Execute()
}
