package main

import "github.com/dentametrics/pmsync/cmd"

func main() {
	cmd.Execute()
}
