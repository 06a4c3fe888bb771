// Package main provides the contractscan CLI, a one-shot contract risk scanner.
package main

func main() {
	Execute()
}
