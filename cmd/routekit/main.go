// Package main is the entry point for routekit.
package main

func main() {
	Execute()
}
