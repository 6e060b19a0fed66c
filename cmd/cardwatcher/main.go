package main

import "card-price-alerts/internal/cli"

func main() {
	cli.Execute()
}
