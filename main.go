package main

import "github.com/frahmantamala/custody-ledger/cmd"

func main() {
	cmd.Execute()
}
