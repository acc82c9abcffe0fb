package main

import "annotate/cmd"

func main() {
	cmd.Execute()
}
