package main

import "github.com/tbourn/go-attendance-backend/cmd"

func main() {
	cmd.Execute()
}
