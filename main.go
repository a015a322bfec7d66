package main

import "github.com/andresmejia3/votecam/cmd"

func main() {
	cmd.Execute()
}
