package main

import "github.com/coffeelibs/jxrun/cmd"

func main() {
	cmd.Execute()
}
