package main

import "github.com/goplus/llbrew/cmd/llbrew/internal"

func main() {
	internal.Execute()
}
