package main

import "github.com/3gx/ccslack/cmd"

func main() {
	cmd.Execute()
}
