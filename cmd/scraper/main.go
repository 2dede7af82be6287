package main

import "github.com/Wq5881898/Scraper/services/runner/cli"

func main() {
	cli.Execute()
}
