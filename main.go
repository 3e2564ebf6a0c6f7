package main

import "github.com/jfmyers9/orochi/cmd"

func main() {
	cmd.Execute()
}
