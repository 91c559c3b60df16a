package main

import "github.com/blogem/reqtel/cmd"

func main() {
	cmd.Execute()
}
