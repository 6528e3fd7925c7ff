package main

import "github.com/SisyphusSQ/mongo-top-tool/cmd"

func main() {
	cmd.Execute()
}
