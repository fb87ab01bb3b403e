package main

import "github.com/chrisdamba/availmap/cmd"

func main() {
	cmd.Execute()
}
