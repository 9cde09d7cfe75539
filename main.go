package main

import "ticketreport/internal/app"

func main() {
	app.Main()
}
