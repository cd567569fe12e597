package main

import "github.com/funvibe/thunkjit/pkg/cli"

func main() {
	cli.Main()
}
