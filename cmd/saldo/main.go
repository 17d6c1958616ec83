// Command saldo is an offline calculator for extra-staff balances.
//
//	saldo balance --approved 10 --actual 7 --days-off 2 --sundays 1 --demand 1 --extras 20 --rate 130
//	saldo week 2025-03-12
//	saldo decide --sector BAR --reason FERIAS --dates 2025-03-13,2025-03-14 --used 2 --approved 10 --actual 7 --extras 20
package main

import (
	"os"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
