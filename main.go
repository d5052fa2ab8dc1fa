package main

import "github.com/frahmantamala/medichat/cmd"

func main() {
	cmd.Execute()
}
