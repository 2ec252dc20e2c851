package main

import (
	"io"
	"os"
)

// readFile reads path, or stdin when path is "-".
func readFile(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
