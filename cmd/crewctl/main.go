/*
crewctl - command-line access to payroll, costs and calendar exports

COMMANDS:
  seed      Load a built-in scenario or a YAML seed file into the database
  payroll   Weekly payroll of a worker (table or xlsx)
  costs     Cost overview of a project (table or xlsx)
  calendar  iCalendar export of the dated phases of a project

DATA SOURCE:
  --db        SQLite database (default crew.db)
  --scenario  Dry run against a built-in scenario in memory instead

EXAMPLES:
  crewctl seed --scenario crew-week --db ./data/crew.db
  crewctl payroll --worker w-marta --date 2024-03-06 --scenario crew-week
  crewctl costs --project p-tower --xlsx costs.xlsx
  crewctl calendar --project p-tower > tower.ics
*/
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
