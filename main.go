package main

import "github.com/Yates-Labs/fewshot/cmd"

func main() {
	cmd.Execute()
}
