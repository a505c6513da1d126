package main

import "assessync/cmd/client/cmd"

func main() {
	cmd.Execute()
}
