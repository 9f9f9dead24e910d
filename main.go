package main

import "ourapp-backend/cmd"

func main() {
	cmd.Run()
}
